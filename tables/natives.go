// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tables

import (
	"fmt"

	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// field of the Table struct holding the handle
const handleFieldIndex = 0

// Natives returns the table natives of the Table module published under
// [addr]. Every native takes the key, value and boxed value types as type
// arguments.
func Natives(addr types.AccountAddress) []natives.Entry {
	entry := func(name types.Identifier, f natives.Function) natives.Entry {
		return natives.Entry{Address: addr, Module: "Table", Function: name, Native: f}
	}
	return []natives.Entry{
		entry("new_table_handle", nativeNewTableHandle),
		entry("add_box", nativeAddBox),
		entry("length_box", nativeLengthBox),
		entry("borrow_box", nativeBorrowBox),
		entry("borrow_box_mut", nativeBorrowBox),
		entry("remove_box", nativeRemoveBox),
		entry("contains_box", nativeContainsBox),
		entry("destroy_empty_box", nativeDestroyEmptyBox),
		entry("drop_unchecked_box", nativeDropUncheckedBox),
	}
}

// FromExtensions returns the table store registered in [ext]
func FromExtensions(ext *natives.Extensions) (*Context, error) {
	v, ok := ext.Get(ExtensionName)
	if !ok {
		return nil, extensionError("table extension is not registered")
	}
	c, ok := v.(*Context)
	if !ok {
		return nil, extensionError(fmt.Sprintf("unexpected table extension %T", v))
	}
	return c, nil
}

func checkArity(name string, tyArgs []types.Type, args []values.Value, want int) error {
	if len(tyArgs) != 3 || len(args) != want {
		return natives.ArgumentError("Table::"+name, want, args, 3, tyArgs)
	}
	return nil
}

// tableHandle reads the handle out of a reference to a Table struct
func tableHandle(v values.Value) (resolver.TableHandle, error) {
	ref, ok := v.(*values.Reference)
	if !ok {
		return resolver.TableHandle{}, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("expected table reference, found %v", v))
	}
	field, err := ref.BorrowField(handleFieldIndex)
	if err != nil {
		return resolver.TableHandle{}, err
	}
	u, ok := field.ReadRef().(values.U128)
	if !ok {
		return resolver.TableHandle{}, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("expected u128 table handle, found %v", field))
	}
	return resolver.TableHandleFromU128(types.U128(u)), nil
}

func keyValue(v values.Value) values.Value {
	if ref, ok := v.(*values.Reference); ok {
		return ref.ReadRef()
	}
	return v
}

// table resolves the table context and the table addressed by args[0]
func table(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (*Context, *Table, error) {
	tc, err := FromExtensions(ctx.Extensions)
	if err != nil {
		return nil, nil, err
	}
	handle, err := tableHandle(args[0])
	if err != nil {
		return nil, nil, err
	}
	t, err := tc.GetOrCreate(ctx.Types, handle, tyArgs[0], tyArgs[2], false)
	if err != nil {
		return nil, nil, err
	}
	return tc, t, nil
}

func nativeNewTableHandle(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("new_table_handle", tyArgs, args, 0); err != nil {
		return natives.Result{}, err
	}
	tc, err := FromExtensions(ctx.Extensions)
	if err != nil {
		return natives.Result{}, err
	}
	t, err := tc.NewTableHandle(ctx.Types, tyArgs[0], tyArgs[2])
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(
		tc.OperationCost(resolver.TableNewHandle, 0, 0),
		values.U128(t.Handle().U128()),
	), nil
}

func nativeAddBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("add_box", tyArgs, args, 3); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	keySize, valSize, err := t.Insert(keyValue(args[1]), args[2])
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableInsert, keySize, valSize)), nil
}

func nativeLengthBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("length_box", tyArgs, args, 1); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	n, err := t.Length()
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableLength, 0, 0), values.U64(n)), nil
}

func nativeBorrowBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("borrow_box", tyArgs, args, 2); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	ref, keySize, valSize, err := t.Borrow(keyValue(args[1]))
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableBorrow, keySize, valSize), ref), nil
}

func nativeRemoveBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("remove_box", tyArgs, args, 2); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	v, keySize, valSize, err := t.Remove(keyValue(args[1]))
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableRemove, keySize, valSize), v), nil
}

func nativeContainsBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("contains_box", tyArgs, args, 2); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	ok, keySize, valSize, err := t.Contains(keyValue(args[1]))
	if err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableContains, keySize, valSize), values.Bool(ok)), nil
}

func nativeDestroyEmptyBox(ctx *natives.Context, tyArgs []types.Type, args []values.Value) (natives.Result, error) {
	if err := checkArity("destroy_empty_box", tyArgs, args, 1); err != nil {
		return natives.Result{}, err
	}
	tc, t, err := table(ctx, tyArgs, args)
	if err != nil {
		return natives.Result{}, err
	}
	if err := t.DestroyEmpty(); err != nil {
		return natives.Result{}, err
	}
	return natives.Ok(tc.OperationCost(resolver.TableDestroy, 0, 0)), nil
}

// nativeDropUncheckedBox releases the interpreter's hold on a table. It has
// no storage effect and never fails.
func nativeDropUncheckedBox(*natives.Context, []types.Type, []values.Value) (natives.Result, error) {
	return natives.Ok(0), nil
}
