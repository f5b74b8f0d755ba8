// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// numSignerParams counts the leading signer and &signer parameters
func numSignerParams(params []types.Type) int {
	n := 0
	for _, p := range params {
		if !p.IsSigner() && !p.IsSignerReference() {
			break
		}
		n++
	}
	return n
}

func (vm *VM) deserializeValue(idx int, ty types.Type, arg []byte) (values.Value, error) {
	layout, err := vm.loader.TypeToTypeLayout(ty)
	if err != nil {
		log.Warn("no layout for parameter type", "index", idx, "type", ty)
		return nil, types.NewError(types.StatusInvalidParamTypeForDeserialization).
			WithMessage(fmt.Sprintf("argument %d has type %s", idx, ty))
	}
	v, err := values.Deserialize(arg, layout)
	if err != nil {
		log.Warn("failed to deserialize argument", "index", idx, "type", ty, "error", err)
		return nil, types.NewError(types.StatusFailedToDeserializeArgument).
			WithMessage(fmt.Sprintf("argument %d of type %s", idx, ty)).
			WithCause(err)
	}
	return v, nil
}

// deserializeArg decodes [arg] for a parameter of type [ty]. A &signer
// parameter accepts a payload laid out as a signer.
func (vm *VM) deserializeArg(idx int, ty types.Type, arg []byte) (values.Value, error) {
	if !ty.IsSignerReference() {
		return vm.deserializeValue(idx, ty, arg)
	}
	v, err := values.Deserialize(arg, types.SignerLayout)
	if err != nil {
		log.Warn("failed to deserialize signer argument", "index", idx, "error", err)
		return nil, types.NewError(types.StatusFailedToDeserializeArgument).
			WithMessage(fmt.Sprintf("argument %d of type %s", idx, ty)).
			WithCause(err)
	}
	return values.SignerReference(types.AccountAddress(v.(values.Signer))), nil
}

// deserializeArgs decodes one argument per parameter. [offset] is the index
// of the first parameter, used in messages.
func (vm *VM) deserializeArgs(offset int, params []types.Type, args [][]byte) ([]values.Value, error) {
	if len(params) != len(args) {
		return nil, types.NewError(types.StatusNumberOfArgumentsMismatch).
			WithMessage(fmt.Sprintf("expected %d arguments, found %d", len(params), len(args)))
	}
	vals := make([]values.Value, len(args))
	for i, arg := range args {
		v, err := vm.deserializeArg(offset+i, params[i], arg)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// createSignersAndArguments builds the actuals of an entry point. Either
// every leading signer parameter is filled from [senders] or, for a
// function without signer parameters, [senders] is ignored.
func (vm *VM) createSignersAndArguments(
	params []types.Type,
	senders []types.AccountAddress,
	args [][]byte,
) ([]values.Value, error) {
	n := numSignerParams(params)
	if n == 0 {
		return vm.deserializeArgs(0, params, args)
	}
	if n != len(senders) {
		return nil, types.NewError(types.StatusNumberOfSignerArgumentsMismatch).
			WithMessage(fmt.Sprintf("expected %d signer arguments, found %d", n, len(senders)))
	}

	vals := make([]values.Value, 0, len(params))
	for i, sender := range senders {
		if params[i].IsSignerReference() {
			vals = append(vals, values.SignerReference(sender))
		} else {
			vals = append(vals, values.SignerValue(sender))
		}
	}
	rest, err := vm.deserializeArgs(n, params[n:], args)
	if err != nil {
		return nil, err
	}
	return append(vals, rest...), nil
}
