// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package loader

import (
	"fmt"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/types"
)

// bundleView answers "which version of module X does the module under
// verification see" while a bundle is checked in order.
type bundleView struct {
	l       *Loader
	store   ModuleStore
	modules []*binary.CompiledModule
	// index of the module under verification
	current int
}

func (v *bundleView) bundleIndex(id types.ModuleID, from, to int) (int, bool) {
	for i := from; i < to; i++ {
		if v.modules[i].Self() == id {
			return i, true
		}
	}
	return 0, false
}

func (v *bundleView) fromStore(id types.ModuleID) (*binary.CompiledModule, bool, error) {
	exists, err := v.store.ExistsModule(id)
	if err != nil || !exists {
		return nil, false, err
	}
	blob, err := v.store.LoadModule(id)
	if err != nil {
		return nil, false, err
	}
	m, err := v.l.deserializeModule(blob)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// published returns [id] as if every bundle module up to and including the
// current one had been published already.
func (v *bundleView) published(id types.ModuleID) (*binary.CompiledModule, bool, error) {
	if i, ok := v.bundleIndex(id, 0, v.current+1); ok {
		return v.modules[i], true, nil
	}
	return v.fromStore(id)
}

// linkable returns [id] for linking: the published view first, then later
// bundle modules, which are checked again once they are verified.
func (v *bundleView) linkable(id types.ModuleID) (*binary.CompiledModule, bool, error) {
	m, ok, err := v.published(id)
	if err != nil || ok {
		return m, ok, err
	}
	if i, ok := v.bundleIndex(id, v.current+1, len(v.modules)); ok {
		return v.modules[i], true, nil
	}
	return nil, false, nil
}

// VerifyModuleBundleForPublication checks [modules] in order. A module's
// dependencies are resolved against bundle modules already verified, then
// storage, then later bundle modules. Later modules are verified in turn, at
// which point the earlier modules depending on them are linked again, so a
// forward reference or a cycle within the bundle is still caught.
func (l *Loader) VerifyModuleBundleForPublication(modules []*binary.CompiledModule, store ModuleStore) error {
	v := &bundleView{l: l, store: store, modules: modules}
	for i, m := range modules {
		v.current = i
		loc := types.ModuleLocation(m.Self())
		if err := l.verifyNatives(m); err != nil {
			return types.AsVMError(err).Finish(loc)
		}
		if err := v.link(m); err != nil {
			return types.AsVMError(err).Finish(loc)
		}
		if err := v.checkCycles(m); err != nil {
			return types.AsVMError(err).Finish(loc)
		}
		for j := 0; j < i; j++ {
			for _, dep := range modules[j].ImmediateDependencies() {
				if dep != m.Self() {
					continue
				}
				if err := v.link(modules[j]); err != nil {
					return types.AsVMError(err).Finish(types.ModuleLocation(modules[j].Self()))
				}
			}
		}
	}
	return nil
}

func (l *Loader) verifyNatives(m *binary.CompiledModule) error {
	for _, def := range m.FunctionDefs {
		if !def.Native {
			continue
		}
		name := m.FunctionHandles[def.Handle].Name
		if _, ok := l.natives.Lookup(m.Self(), name); !ok {
			return types.NewError(types.StatusMissingNativeFunction).
				WithMessage(fmt.Sprintf("%s::%s", m.Self(), name))
		}
	}
	return nil
}

// link checks every struct and function [m] imports against the module
// that declares it.
func (v *bundleView) link(m *binary.CompiledModule) error {
	deps := make(map[types.ModuleID]*binary.CompiledModule)
	for _, id := range m.ImmediateDependencies() {
		dep, ok, err := v.linkable(id)
		if err != nil {
			return err
		}
		if !ok {
			return types.NewError(types.StatusMissingDependency).
				WithMessage(fmt.Sprintf("%s depends on missing module %s", m.Self(), id))
		}
		deps[id] = dep
	}

	self := m.Self()
	h := m.Handles()
	for _, sh := range m.StructHandles {
		owner := m.ModuleHandles[sh.Module].ID
		if owner == self {
			continue
		}
		dep := deps[owner]
		def, ok := dep.StructDefByName(sh.Name)
		if !ok {
			return types.NewError(types.StatusLookupFailed).
				WithMessage(fmt.Sprintf("struct %s::%s not found", owner, sh.Name))
		}
		declared := dep.StructHandles[def.Handle]
		if declared.Abilities != sh.Abilities || declared.TypeParams != sh.TypeParams {
			return types.NewError(types.StatusTypeMismatch).
				WithMessage(fmt.Sprintf("struct %s::%s does not match its declaration", owner, sh.Name))
		}
	}

	for _, fh := range m.FunctionHandles {
		owner := m.ModuleHandles[fh.Module].ID
		if owner == self {
			continue
		}
		dep := deps[owner]
		def, ok := dep.FunctionDefByName(fh.Name)
		if !ok || def.Visibility == binary.Private {
			return types.NewError(types.StatusLookupFailed).
				WithMessage(fmt.Sprintf("function %s::%s not found", owner, fh.Name))
		}
		declared := dep.FunctionHandles[def.Handle]
		depH := dep.Handles()
		if !sameTypeParams(declared.TypeParams, fh.TypeParams) ||
			!sameSignature(depH, declared.Parameters, h, fh.Parameters) ||
			!sameSignature(depH, declared.Return, h, fh.Return) {
			return types.NewError(types.StatusTypeMismatch).
				WithMessage(fmt.Sprintf("function %s::%s does not match its declaration", owner, fh.Name))
		}
	}
	return nil
}

func sameTypeParams(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameSignature(ah binary.Handles, a []binary.SignatureToken, bh binary.Handles, b []binary.SignatureToken) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if ah.TokenString(a[i]) != bh.TokenString(b[i]) {
			return false
		}
	}
	return true
}

// checkCycles walks the dependencies of [m] through published modules only
// and fails if the walk returns to [m].
func (v *bundleView) checkCycles(m *binary.CompiledModule) error {
	root := m.Self()
	visited := make(map[types.ModuleID]bool)
	var walk func(*binary.CompiledModule) error
	walk = func(cur *binary.CompiledModule) error {
		for _, id := range cur.ImmediateDependencies() {
			if id == root {
				return types.NewError(types.StatusCyclicModuleDependency).
					WithMessage(fmt.Sprintf("%s depends on itself through %s", root, cur.Self()))
			}
			if visited[id] {
				continue
			}
			visited[id] = true
			dep, ok, err := v.published(id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(m)
}
