// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/framework"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/runtime"
	"github.com/ava-labs/resourcevm/state"
	"github.com/ava-labs/resourcevm/tables"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

var (
	sender    = types.MustParseAddress("0x2")
	counterID = types.NewModuleID(sender, "Counter")
)

// counterModule declares a resource and native entry points over it
func counterModule() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(counterID)
	b.Struct("C", types.AbilityKey, 0, binary.FieldDefinition{Name: "n", Type: binary.U64Token})
	b.Function("publish", binary.Script, true, []uint8{uint8(types.AbilityKey)},
		[]binary.SignatureToken{binary.SignerToken, binary.TypeParameterToken(0)}, nil)
	b.Function("emit", binary.Script, true, nil,
		[]binary.SignatureToken{binary.SignerToken, binary.U64Token}, nil)
	b.Function("twice", binary.Public, true, nil,
		[]binary.SignatureToken{binary.U64Token}, []binary.SignatureToken{binary.U64Token})
	b.Function("make_table", binary.Script, true, nil,
		[]binary.SignatureToken{binary.SignerToken}, nil)
	return b
}

func counterNatives() []natives.Entry {
	entry := func(name types.Identifier, f natives.Function) natives.Entry {
		return natives.Entry{Address: sender, Module: "Counter", Function: name, Native: f}
	}
	return []natives.Entry{
		entry("publish", func(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
			addr := types.AccountAddress(args[0].(values.Signer))
			gv, err := ctx.DataStore.LoadResource(addr, tyArgs[0])
			if err != nil {
				return natives.Result{}, err
			}
			if gv.Exists() {
				return natives.Abort(10, 1), nil
			}
			return natives.Ok(10), gv.MoveTo(args[1])
		}),
		entry("emit", func(ctx *natives.Context, _ []types.Type, args []values.Value) (natives.Result, error) {
			addr := types.AccountAddress(args[0].(values.Signer))
			n := args[1].(values.U64)
			return natives.Ok(5), ctx.DataStore.EmitEvent(addr.Bytes(), uint64(n), types.U64Type, n)
		}),
		entry("twice", func(_ *natives.Context, _ []types.Type, args []values.Value) (natives.Result, error) {
			return natives.Ok(1, args[0].(values.U64)*2), nil
		}),
		entry("make_table", func(ctx *natives.Context, _ []types.Type, _ []values.Value) (natives.Result, error) {
			tc, err := tables.FromExtensions(ctx.Extensions)
			if err != nil {
				return natives.Result{}, err
			}
			if _, err := tc.NewTableHandle(ctx.Types, types.U64Type, types.U64Type); err != nil {
				return natives.Result{}, err
			}
			return natives.Ok(tc.OperationCost(resolver.TableNewHandle, 0, 0)), nil
		}),
	}
}

func hexOf(t *testing.T, b []byte) string {
	str, err := formatting.EncodeWithChecksum(formatting.Hex, b)
	require.NoError(t, err)
	return str
}

func serialize(t *testing.T, v values.Value, layout types.TypeLayout) []byte {
	b, err := values.Serialize(v, layout)
	require.NoError(t, err)
	return b
}

func newTestService(t *testing.T) *Service {
	require := require.New(t)

	nativeTable := framework.Natives()
	nativeTable.Add(counterNatives()...)
	vm := runtime.New(nativeTable, runtime.Config{})
	st, err := state.NewState(memdb.New(), state.DefaultTableCosts, nil)
	require.NoError(err)
	require.NoError(framework.Initialize(vm, st))

	s := New(vm, st, DefaultConfig)
	blob, err := counterModule().Bytes()
	require.NoError(err)
	reply := PublishModuleBundleReply{}
	require.NoError(s.PublishModuleBundle(nil, &PublishModuleBundleArgs{
		Sender:  sender,
		Modules: []string{hexOf(t, blob)},
	}, &reply))
	require.Equal([]string{counterID.String()}, reply.Modules)
	return s
}

func TestPublishRejectsForeignModules(t *testing.T) {
	require := require.New(t)

	s := newTestService(t)
	blob, err := counterModule().Bytes()
	require.NoError(err)
	err = s.PublishModuleBundle(nil, &PublishModuleBundleArgs{
		Sender:  types.MustParseAddress("0x3"),
		Modules: []string{hexOf(t, blob)},
	}, &PublishModuleBundleReply{})
	require.Equal(types.StatusModuleAddressDoesNotMatchSender, types.StatusOf(err))
}

func TestExecuteScriptFunction(t *testing.T) {
	require := require.New(t)

	s := newTestService(t)
	resource := serialize(t, values.NewStruct(values.U64(7)), types.StructLayout(types.U64Layout))
	args := &ExecuteScriptFunctionArgs{
		ExecuteArgs: ExecuteArgs{
			TypeArgs: []string{"0x2::Counter::C"},
			Args:     []string{hexOf(t, resource)},
			Senders:  []types.AccountAddress{sender},
		},
		Module:   counterID.String(),
		Function: "publish",
	}
	reply := ExecuteReply{}
	require.NoError(s.ExecuteScriptFunction(nil, args, &reply))
	require.EqualValues(10, reply.GasUsed)
	require.EqualValues(1, reply.MutatedAccounts)
	require.Empty(reply.Events)

	got := GetResourceReply{}
	require.NoError(s.GetResource(nil, &GetResourceArgs{Address: sender, Type: "0x2::Counter::C"}, &got))
	require.Equal(hexOf(t, resource), got.Resource)

	// the second publication aborts and leaves the committed value alone
	err := s.ExecuteScriptFunction(nil, args, &ExecuteReply{})
	require.Equal(types.StatusAborted, types.StatusOf(err))
	require.NoError(s.GetResource(nil, &GetResourceArgs{Address: sender, Type: "0x2::Counter::C"}, &got))
	require.Equal(hexOf(t, resource), got.Resource)

	err = s.GetResource(nil, &GetResourceArgs{Address: types.MustParseAddress("0x3"), Type: "0x2::Counter::C"}, &got)
	require.ErrorIs(err, errResourceNotFound)
}

func TestExecuteRequiresSenders(t *testing.T) {
	s := newTestService(t)
	err := s.ExecuteScriptFunction(nil, &ExecuteScriptFunctionArgs{
		Module:   counterID.String(),
		Function: "emit",
	}, &ExecuteReply{})
	require.ErrorIs(t, err, errNoSenders)
}

func TestEvents(t *testing.T) {
	require := require.New(t)

	s := newTestService(t)
	for i := uint64(0); i < 2; i++ {
		reply := ExecuteReply{}
		require.NoError(s.ExecuteScriptFunction(nil, &ExecuteScriptFunctionArgs{
			ExecuteArgs: ExecuteArgs{
				Args:    []string{hexOf(t, serialize(t, values.U64(i), types.U64Layout))},
				Senders: []types.AccountAddress{sender},
			},
			Module:   counterID.String(),
			Function: "emit",
		}, &reply))
		require.Len(reply.Events, 1)
		require.Equal("u64", reply.Events[0].Type)
	}

	got := GetEventsReply{}
	require.NoError(s.GetEvents(nil, &GetEventsArgs{Key: hexOf(t, sender.Bytes())}, &got))
	require.Len(got.Events, 2)
	require.EqualValues(0, got.Events[0].SequenceNumber)
	require.EqualValues(1, got.Events[1].SequenceNumber)
	require.Equal(hexOf(t, serialize(t, values.U64(1), types.U64Layout)), got.Events[1].Data)
}

func TestCallFunction(t *testing.T) {
	require := require.New(t)

	s := newTestService(t)
	reply := CallFunctionReply{}
	require.NoError(s.CallFunction(nil, &CallFunctionArgs{
		Module:   counterID.String(),
		Function: "twice",
		Args:     []string{hexOf(t, serialize(t, values.U64(21), types.U64Layout))},
	}, &reply))
	require.Equal([]string{hexOf(t, serialize(t, values.U64(42), types.U64Layout))}, reply.Returns)
	require.EqualValues(1, reply.GasUsed)

	err := s.CallFunction(nil, &CallFunctionArgs{Module: counterID.String(), Function: "missing"}, &reply)
	require.Equal(types.StatusLookupFailed, types.StatusOf(err))
}

func TestGetters(t *testing.T) {
	assert := assert.New(t)

	s := newTestService(t)
	module := GetModuleReply{}
	assert.NoError(s.GetModule(nil, &GetModuleArgs{Module: "0x1::Table"}, &module))
	assert.NotEmpty(module.Module)
	// replies decode with the checksummed hex encoding the arguments use
	decoded, err := formatting.Decode(formatting.Hex, module.Module)
	assert.NoError(err)
	stored, err := s.state.GetModule(types.NewModuleID(framework.Address, "Table"))
	assert.NoError(err)
	assert.Equal(stored, decoded)
	assert.ErrorIs(s.GetModule(nil, &GetModuleArgs{Module: "0x2::Missing"}, &module), errModuleNotFound)
	assert.Error(s.GetModule(nil, &GetModuleArgs{Module: "not a module"}, &module))

	entry := GetTableEntryReply{}
	handle := resolver.TableHandle{1}
	assert.ErrorIs(s.GetTableEntry(nil, &GetTableEntryArgs{
		Handle: handle.String(),
		Key:    hexOf(t, []byte{1}),
	}, &entry), errEntryNotFound)
}

func makeTable(t *testing.T, s *Service, senders ...types.AccountAddress) ExecuteReply {
	reply := ExecuteReply{}
	require.NoError(t, s.ExecuteScriptFunction(nil, &ExecuteScriptFunctionArgs{
		ExecuteArgs: ExecuteArgs{Senders: senders},
		Module:      counterID.String(),
		Function:    "make_table",
	}, &reply))
	return reply
}

func txnCounter(t *testing.T, s *Service) uint64 {
	counter, err := s.state.TxnCounter()
	require.NoError(t, err)
	return counter
}

func TestTableHandlesAreReproducible(t *testing.T) {
	require := require.New(t)

	first := makeTable(t, newTestService(t), sender)
	require.Len(first.NewTables, 1)

	// the same requests against the same starting state mint the same handles
	second := makeTable(t, newTestService(t), sender)
	require.Equal(first.NewTables, second.NewTables)

	// a different signer changes the transaction hash
	other := makeTable(t, newTestService(t), types.MustParseAddress("0x3"))
	require.Len(other.NewTables, 1)
	require.NotEqual(first.NewTables, other.NewTables)
}

func TestTxnCounterAdvancesOnCommit(t *testing.T) {
	require := require.New(t)

	s := newTestService(t)
	require.EqualValues(1, txnCounter(t, s), "the module bundle is the first transaction")

	first := makeTable(t, s, sender)
	require.EqualValues(2, txnCounter(t, s))

	// a failed call commits nothing and leaves the counter alone
	err := s.CallFunction(nil, &CallFunctionArgs{Module: counterID.String(), Function: "missing"}, &CallFunctionReply{})
	require.Error(err)
	err = s.ExecuteScriptFunction(nil, &ExecuteScriptFunctionArgs{
		ExecuteArgs: ExecuteArgs{Senders: []types.AccountAddress{sender}},
		Module:      counterID.String(),
		Function:    "missing",
	}, &ExecuteReply{})
	require.Error(err)
	require.EqualValues(2, txnCounter(t, s))

	// repeating the request in a later transaction mints a fresh handle
	second := makeTable(t, s, sender)
	require.EqualValues(3, txnCounter(t, s))
	require.Len(second.NewTables, 1)
	require.NotEqual(first.NewTables, second.NewTables)

	table := GetTableEntryReply{}
	err = s.GetTableEntry(nil, &GetTableEntryArgs{Handle: second.NewTables[0], Key: hexOf(t, []byte{1})}, &table)
	require.ErrorIs(err, errEntryNotFound)
}
