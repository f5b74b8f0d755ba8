// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package natives

import (
	"fmt"

	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

const (
	borrowAddressCost     = 1
	writeEventBaseCost    = 10
	writeEventCostPerByte = 1
)

// Standard returns the natives of the Signer and Event modules published
// under [addr].
func Standard(addr types.AccountAddress) []Entry {
	return []Entry{
		{Address: addr, Module: "Signer", Function: "borrow_address", Native: borrowAddress},
		{Address: addr, Module: "Event", Function: "write_to_event_store", Native: writeToEventStore},
	}
}

// borrowAddress(s: &signer): &address
func borrowAddress(_ *Context, tyArgs []types.Type, args []values.Value) (Result, error) {
	if len(args) != 1 || len(tyArgs) != 0 {
		return Result{}, ArgumentError("Signer::borrow_address", 1, args, 0, tyArgs)
	}
	ref, ok := args[0].(*values.Reference)
	if !ok {
		return Result{}, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("expected &signer, found %v", args[0]))
	}
	signer, ok := ref.ReadRef().(values.Signer)
	if !ok {
		return Result{}, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("expected &signer, found %v", ref))
	}
	return Ok(borrowAddressCost, values.NewReference(values.Address(signer))), nil
}

// writeToEventStore<T>(guid: vector<u8>, count: u64, msg: T)
func writeToEventStore(ctx *Context, tyArgs []types.Type, args []values.Value) (Result, error) {
	if len(args) != 3 || len(tyArgs) != 1 {
		return Result{}, ArgumentError("Event::write_to_event_store", 3, args, 1, tyArgs)
	}
	guid, err := values.AsBytes(args[0])
	if err != nil {
		return Result{}, err
	}
	count, ok := args[1].(values.U64)
	if !ok {
		return Result{}, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("expected u64, found %v", args[1]))
	}
	if err := ctx.DataStore.EmitEvent(guid, uint64(count), tyArgs[0], args[2]); err != nil {
		return Result{}, err
	}
	return Ok(writeEventBaseCost + writeEventCostPerByte*uint64(len(guid))), nil
}
