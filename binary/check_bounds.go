// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

import (
	"fmt"

	"github.com/ava-labs/resourcevm/types"
)

const maxTokenDepth = 64

func boundsError(format string, args ...interface{}) error {
	return types.NewError(types.StatusIndexOutOfBounds).WithMessage(fmt.Sprintf(format, args...))
}

func checkModuleBounds(m *CompiledModule) error {
	if int(m.SelfHandle) >= len(m.ModuleHandles) {
		return boundsError("self handle %d of %d module handles", m.SelfHandle, len(m.ModuleHandles))
	}
	h := m.Handles()
	if err := checkHandles(h, m.FunctionHandles); err != nil {
		return err
	}
	if !m.Name().IsValid() {
		return types.NewError(types.StatusInvalidModuleName).WithMessage(string(m.Name()))
	}

	definedStructs := make(map[uint16]struct{}, len(m.StructDefs))
	for i, def := range m.StructDefs {
		if int(def.Handle) >= len(m.StructHandles) {
			return boundsError("struct definition %d refers to handle %d", i, def.Handle)
		}
		if _, ok := definedStructs[def.Handle]; ok {
			return boundsError("struct handle %d defined twice", def.Handle)
		}
		definedStructs[def.Handle] = struct{}{}
		sh := m.StructHandles[def.Handle]
		if sh.Module != m.SelfHandle {
			return boundsError("struct definition %d defines foreign struct %s", i, sh.Name)
		}
		for _, f := range def.Fields {
			if !f.Name.IsValid() {
				return boundsError("struct %s has invalid field name %q", sh.Name, f.Name)
			}
			if err := checkToken(h, f.Type, int(sh.TypeParams), 0); err != nil {
				return err
			}
		}
	}

	definedFuncs := make(map[uint16]struct{}, len(m.FunctionDefs))
	for i, def := range m.FunctionDefs {
		if int(def.Handle) >= len(m.FunctionHandles) {
			return boundsError("function definition %d refers to handle %d", i, def.Handle)
		}
		if _, ok := definedFuncs[def.Handle]; ok {
			return boundsError("function handle %d defined twice", def.Handle)
		}
		definedFuncs[def.Handle] = struct{}{}
		if fh := m.FunctionHandles[def.Handle]; fh.Module != m.SelfHandle {
			return boundsError("function definition %d defines foreign function %s", i, fh.Name)
		}
		if def.Visibility > Friend {
			return boundsError("function definition %d has visibility %d", i, def.Visibility)
		}
		for _, a := range def.Acquires {
			if int(a) >= len(m.StructDefs) {
				return boundsError("function definition %d acquires struct definition %d", i, a)
			}
		}
	}
	return nil
}

func checkScriptBounds(s *CompiledScript) error {
	h := s.Handles()
	if err := checkHandles(h, s.FunctionHandles); err != nil {
		return err
	}
	for _, t := range s.Parameters {
		if err := checkToken(h, t, len(s.TypeParams), 0); err != nil {
			return err
		}
	}
	for _, t := range s.Return {
		if err := checkToken(h, t, len(s.TypeParams), 0); err != nil {
			return err
		}
	}
	return nil
}

func checkHandles(h Handles, funcs []FunctionHandle) error {
	for i, mh := range h.Modules {
		if !mh.ID.Name.IsValid() {
			return types.NewError(types.StatusInvalidModuleName).
				WithMessage(fmt.Sprintf("module handle %d: %q", i, mh.ID.Name))
		}
	}
	for i, sh := range h.Structs {
		if int(sh.Module) >= len(h.Modules) {
			return boundsError("struct handle %d refers to module handle %d", i, sh.Module)
		}
		if !sh.Name.IsValid() {
			return boundsError("struct handle %d has invalid name %q", i, sh.Name)
		}
	}
	for i, fh := range funcs {
		if int(fh.Module) >= len(h.Modules) {
			return boundsError("function handle %d refers to module handle %d", i, fh.Module)
		}
		if !fh.Name.IsValid() {
			return boundsError("function handle %d has invalid name %q", i, fh.Name)
		}
		for _, t := range fh.Parameters {
			if err := checkToken(h, t, len(fh.TypeParams), 0); err != nil {
				return err
			}
		}
		for _, t := range fh.Return {
			if err := checkToken(h, t, len(fh.TypeParams), 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkToken(h Handles, t SignatureToken, typeParams int, depth int) error {
	if depth > maxTokenDepth {
		return boundsError("signature token nested deeper than %d", maxTokenDepth)
	}
	switch t.Kind {
	case TokenBool, TokenU8, TokenU64, TokenU128, TokenAddress, TokenSigner:
		if len(t.Args) != 0 {
			return boundsError("primitive token with %d arguments", len(t.Args))
		}
	case TokenVector, TokenReference, TokenMutableReference:
		if len(t.Args) != 1 {
			return boundsError("token %d with %d arguments", t.Kind, len(t.Args))
		}
		return checkToken(h, t.Args[0], typeParams, depth+1)
	case TokenStruct, TokenStructInstantiation:
		if int(t.Index) >= len(h.Structs) {
			return boundsError("struct handle %d of %d", t.Index, len(h.Structs))
		}
		want := int(h.Structs[t.Index].TypeParams)
		if t.Kind == TokenStruct && len(t.Args) != 0 {
			return boundsError("struct token with %d arguments", len(t.Args))
		}
		if want != len(t.Args) {
			return types.NewError(types.StatusNumberOfTypeArgumentsMismatch).
				WithMessage(fmt.Sprintf("struct %s takes %d type arguments, found %d", h.Structs[t.Index].Name, want, len(t.Args)))
		}
		for _, a := range t.Args {
			if err := checkToken(h, a, typeParams, depth+1); err != nil {
				return err
			}
		}
	case TokenTypeParameter:
		if int(t.Index) >= typeParams {
			return boundsError("type parameter %d of %d", t.Index, typeParams)
		}
	default:
		return boundsError("unknown token kind %d", t.Kind)
	}
	return nil
}
