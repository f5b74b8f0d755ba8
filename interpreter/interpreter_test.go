// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/loader"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

var modID = types.NewModuleID(types.MustParseAddress("0x1"), "M")

func nativeFn(native natives.Function, params ...types.Type) *loader.Function {
	return &loader.Function{
		Module:     modID,
		Name:       "f",
		Parameters: params,
		Native:     native,
	}
}

type recordingExecutor struct {
	calls int
}

func (r *recordingExecutor) Entrypoint(
	*loader.Function, []types.Type, []values.Value, *natives.Context, *gas.Status,
) ([]values.Value, error) {
	r.calls++
	return []values.Value{values.Bool(true)}, nil
}

func TestNativeDispatch(t *testing.T) {
	require := require.New(t)

	double := func(_ *natives.Context, _ []types.Type, args []values.Value) (natives.Result, error) {
		return natives.Ok(3, values.U64(2*args[0].(values.U64))), nil
	}
	meter := gas.NewStatus(10)
	out, err := New().Entrypoint(nativeFn(double, types.U64Type), nil, []values.Value{values.U64(21)}, &natives.Context{}, meter)
	require.NoError(err)
	require.Equal([]values.Value{values.U64(42)}, out)
	require.EqualValues(7, meter.Remaining())
}

func TestNativeAbort(t *testing.T) {
	require := require.New(t)

	abort := func(*natives.Context, []types.Type, []values.Value) (natives.Result, error) {
		return natives.Abort(1, 77), nil
	}
	meter := gas.NewStatus(10)
	_, err := New().Entrypoint(nativeFn(abort), nil, nil, &natives.Context{}, meter)
	require.Equal(types.StatusAborted, types.StatusOf(err))
	sub, ok := types.SubStatusOf(err)
	require.True(ok)
	require.EqualValues(77, sub)
	require.Equal(types.ModuleLocation(modID), types.AsVMError(err).Location)
	// the cost is charged before aborting
	require.EqualValues(9, meter.Remaining())
}

func TestNativeOutOfGas(t *testing.T) {
	expensive := func(*natives.Context, []types.Type, []values.Value) (natives.Result, error) {
		return natives.Ok(100), nil
	}
	_, err := New().Entrypoint(nativeFn(expensive), nil, nil, &natives.Context{}, gas.NewStatus(10))
	require.Equal(t, types.StatusOutOfGas, types.StatusOf(err))
}

func TestNativeArityMismatch(t *testing.T) {
	noop := func(*natives.Context, []types.Type, []values.Value) (natives.Result, error) {
		return natives.Ok(0), nil
	}
	_, err := New().Entrypoint(nativeFn(noop, types.U64Type), nil, nil, &natives.Context{}, gas.Unmetered())
	require.Equal(t, types.StatusUnknownInvariantViolation, types.StatusOf(err))
}

func TestBytecodeBodies(t *testing.T) {
	require := require.New(t)

	f := &loader.Function{Module: modID, Name: "g"}
	_, err := New().Entrypoint(f, nil, nil, &natives.Context{}, gas.Unmetered())
	require.Equal(types.StatusUnimplementedFunctionality, types.StatusOf(err))

	fallback := &recordingExecutor{}
	out, err := (&Interpreter{Fallback: fallback}).Entrypoint(f, nil, nil, &natives.Context{}, gas.Unmetered())
	require.NoError(err)
	require.Equal(1, fallback.calls)
	require.Len(out, 1)
}
