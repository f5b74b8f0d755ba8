// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/ava-labs/resourcevm/datacache"
	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/loader"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// Session is one unit of work against a snapshot of remote state. It is not
// safe for concurrent use. A session whose call fails must be discarded.
type Session struct {
	vm         *VM
	data       *datacache.TransactionDataCache
	extensions *natives.Extensions
}

// MutatedReference is the value behind a &mut argument after a call
type MutatedReference struct {
	Index int
	Value []byte
}

func (s *Session) context() *natives.Context {
	return &natives.Context{
		DataStore:  s.data,
		Types:      s.vm.loader,
		Extensions: s.extensions,
	}
}

func finish(err error) error {
	return types.AsVMError(err).Finish(types.UndefinedLocation)
}

func (s *Session) loadTypeArgs(tags []types.TypeTag) ([]types.Type, error) {
	tys := make([]types.Type, len(tags))
	for i, tag := range tags {
		ty, err := s.vm.loader.LoadType(tag, s.data)
		if err != nil {
			return nil, err
		}
		tys[i] = ty
	}
	return tys, nil
}

func substAll(tys []types.Type, tyArgs []types.Type) ([]types.Type, error) {
	out := make([]types.Type, len(tys))
	for i, ty := range tys {
		inst, err := ty.Subst(tyArgs)
		if err != nil {
			return nil, err
		}
		out[i] = inst
	}
	return out, nil
}

func (s *Session) returnLayouts(f *loader.Function, tyArgs []types.Type) ([]types.TypeLayout, error) {
	rets, err := substAll(f.Return, tyArgs)
	if err != nil {
		return nil, finish(err)
	}
	layouts := make([]types.TypeLayout, len(rets))
	for i, ty := range rets {
		layout, err := s.vm.loader.TypeToTypeLayout(ty)
		if err != nil {
			return nil, types.NewError(types.StatusInternalTypeError).
				WithMessage(fmt.Sprintf("%s has non-serializable return type %s", f, ty)).
				Finish(types.UndefinedLocation)
		}
		layouts[i] = layout
	}
	return layouts, nil
}

func serializeReturns(f *loader.Function, rets []values.Value, layouts []types.TypeLayout) ([][]byte, error) {
	if len(rets) != len(layouts) {
		return nil, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("%s declared %d return types, but got %d return values", f, len(layouts), len(rets))).
			Finish(types.UndefinedLocation)
	}
	out := make([][]byte, len(rets))
	for i, v := range rets {
		b, err := values.Serialize(v, layouts[i])
		if err != nil {
			return nil, types.NewError(types.StatusInternalTypeError).
				WithMessage("failed to serialize return values").
				WithCause(err).
				Finish(types.UndefinedLocation)
		}
		out[i] = b
	}
	return out, nil
}

type argumentMaker func(params []types.Type) ([]values.Value, error)

func (s *Session) executeFunction(f *loader.Function, tyArgs []types.Type, makeArgs argumentMaker, meter *gas.Status) ([][]byte, error) {
	layouts, err := s.returnLayouts(f, tyArgs)
	if err != nil {
		return nil, err
	}
	params, err := substAll(f.Parameters, tyArgs)
	if err != nil {
		return nil, finish(err)
	}
	args, err := makeArgs(params)
	if err != nil {
		return nil, finish(err)
	}
	rets, err := s.vm.interpreter.Entrypoint(f, tyArgs, args, s.context(), meter)
	if err != nil {
		return nil, err
	}
	return serializeReturns(f, rets, layouts)
}

func entryHasNoReturns(rets [][]byte) error {
	if len(rets) != 0 {
		return types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage("entry points cannot return values").
			Finish(types.UndefinedLocation)
	}
	return nil
}

// ExecuteScript runs the script [script]. Leading signer parameters are
// filled from [senders]; a script returning values is an invariant
// violation.
func (s *Session) ExecuteScript(
	script []byte,
	tyArgs []types.TypeTag,
	args [][]byte,
	senders []types.AccountAddress,
	meter *gas.Status,
) error {
	tys, err := s.loadTypeArgs(tyArgs)
	if err != nil {
		return finish(err)
	}
	f, err := s.vm.loader.LoadScript(script, tys, s.data)
	if err != nil {
		return err
	}
	rets, err := s.executeFunction(f, tys, func(params []types.Type) ([]values.Value, error) {
		return s.vm.createSignersAndArguments(params, senders, args)
	}, meter)
	if err != nil {
		return err
	}
	return entryHasNoReturns(rets)
}

// ExecuteScriptFunction runs the script visible function [module]::[name]
// with the same conventions as ExecuteScript
func (s *Session) ExecuteScriptFunction(
	module types.ModuleID,
	name types.Identifier,
	tyArgs []types.TypeTag,
	args [][]byte,
	senders []types.AccountAddress,
	meter *gas.Status,
) error {
	tys, err := s.loadTypeArgs(tyArgs)
	if err != nil {
		return finish(err)
	}
	f, err := s.vm.loader.LoadFunction(module, name, tys, s.data, true)
	if err != nil {
		return err
	}
	rets, err := s.executeFunction(f, tys, func(params []types.Type) ([]values.Value, error) {
		return s.vm.createSignersAndArguments(params, senders, args)
	}, meter)
	if err != nil {
		return err
	}
	return entryHasNoReturns(rets)
}

// ExecuteFunction runs [module]::[name] regardless of its visibility and
// returns its serialized results. Arguments are passed as is, without the
// signer convention.
func (s *Session) ExecuteFunction(
	module types.ModuleID,
	name types.Identifier,
	tyArgs []types.TypeTag,
	args [][]byte,
	meter *gas.Status,
) ([][]byte, error) {
	tys, err := s.loadTypeArgs(tyArgs)
	if err != nil {
		return nil, finish(err)
	}
	f, err := s.vm.loader.LoadFunction(module, name, tys, s.data, false)
	if err != nil {
		return nil, err
	}
	return s.executeFunction(f, tys, func(params []types.Type) ([]values.Value, error) {
		return s.vm.deserializeArgs(0, params, args)
	}, meter)
}

// ExecuteFunctionForEffects runs [module]::[name] passing reference
// parameters by reference to a copy of the supplied argument. Besides the
// results it returns the final value behind every &mut parameter.
func (s *Session) ExecuteFunctionForEffects(
	module types.ModuleID,
	name types.Identifier,
	tyArgs []types.TypeTag,
	args [][]byte,
	meter *gas.Status,
) ([][]byte, []MutatedReference, error) {
	tys, err := s.loadTypeArgs(tyArgs)
	if err != nil {
		return nil, nil, finish(err)
	}
	f, err := s.vm.loader.LoadFunction(module, name, tys, s.data, false)
	if err != nil {
		return nil, nil, err
	}
	layouts, err := s.returnLayouts(f, tys)
	if err != nil {
		return nil, nil, err
	}
	params, err := substAll(f.Parameters, tys)
	if err != nil {
		return nil, nil, finish(err)
	}
	if len(params) != len(args) {
		return nil, nil, types.NewError(types.StatusNumberOfArgumentsMismatch).
			WithMessage(fmt.Sprintf("expected %d arguments, found %d", len(params), len(args))).
			Finish(types.UndefinedLocation)
	}

	locals := values.NewLocals(len(params))
	actuals := make([]values.Value, len(params))
	var mutable []int
	for i, ty := range params {
		if !ty.IsReference() {
			v, err := s.vm.deserializeValue(i, ty, args[i])
			if err != nil {
				return nil, nil, finish(err)
			}
			actuals[i] = v
			continue
		}
		v, err := s.vm.deserializeValue(i, *ty.Elem, args[i])
		if err != nil {
			return nil, nil, finish(err)
		}
		if err := locals.StoreLoc(i, v); err != nil {
			return nil, nil, finish(err)
		}
		ref, err := locals.BorrowLoc(i)
		if err != nil {
			return nil, nil, finish(err)
		}
		actuals[i] = ref
		if ty.Kind == types.KindMutableReference {
			mutable = append(mutable, i)
		}
	}

	rets, err := s.vm.interpreter.Entrypoint(f, tys, actuals, s.context(), meter)
	if err != nil {
		return nil, nil, err
	}
	out, err := serializeReturns(f, rets, layouts)
	if err != nil {
		return nil, nil, err
	}

	mutated := make([]MutatedReference, 0, len(mutable))
	for _, i := range mutable {
		v, err := locals.MoveLoc(i)
		if err != nil {
			return nil, nil, finish(err)
		}
		layout, err := s.vm.loader.TypeToTypeLayout(*params[i].Elem)
		if err != nil {
			return nil, nil, types.NewError(types.StatusInternalTypeError).
				WithMessage(fmt.Sprintf("non-serializable mutable reference type %s", params[i])).
				Finish(types.UndefinedLocation)
		}
		b, err := values.Serialize(v, layout)
		if err != nil {
			return nil, nil, types.NewError(types.StatusInternalTypeError).
				WithMessage("failed to serialize mutable reference values").
				WithCause(err).
				Finish(types.UndefinedLocation)
		}
		mutated = append(mutated, MutatedReference{Index: i, Value: b})
	}
	return out, mutated, nil
}

// NumMutatedAccounts counts [sender] plus every other account with a
// mutated resource
func (s *Session) NumMutatedAccounts(sender types.AccountAddress) uint64 {
	return s.data.NumMutatedAccounts(sender)
}

// Finish ends the session, returning its changes and events
func (s *Session) Finish() (*types.ChangeSet, []types.Event, error) {
	changes, events, err := s.data.IntoEffects()
	if err != nil {
		return nil, nil, finish(err)
	}
	return changes, events, nil
}

// FinishWithExtensions ends the session and hands back its extensions, from
// which the caller extracts extension specific changes
func (s *Session) FinishWithExtensions() (*types.ChangeSet, []types.Event, *natives.Extensions, error) {
	changes, events, err := s.Finish()
	if err != nil {
		return nil, nil, nil, err
	}
	return changes, events, s.extensions, nil
}
