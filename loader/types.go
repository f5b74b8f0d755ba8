// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package loader

import (
	"fmt"

	"github.com/ava-labs/resourcevm/types"
)

// bounds the nesting of converted types, which also stops recursive structs
const maxTypeDepth = 128

func noTypeFor(what string, ty types.Type) error {
	return types.NewError(types.StatusUnknownInvariantViolation).
		WithMessage(fmt.Sprintf("no %s for %s", what, ty))
}

// TypeToTypeTag returns the storage name of a fully instantiated type
func (l *Loader) TypeToTypeTag(ty types.Type) (types.TypeTag, error) {
	return typeTag(ty, 0)
}

func typeTag(ty types.Type, depth int) (types.TypeTag, error) {
	if depth > maxTypeDepth {
		return types.TypeTag{}, noTypeFor("type tag (too deep)", ty)
	}
	switch ty.Kind {
	case types.KindBool:
		return types.BoolTag, nil
	case types.KindU8:
		return types.U8Tag, nil
	case types.KindU64:
		return types.U64Tag, nil
	case types.KindU128:
		return types.U128Tag, nil
	case types.KindAddress:
		return types.AddressTag, nil
	case types.KindSigner:
		return types.SignerTag, nil
	case types.KindVector:
		elem, err := typeTag(*ty.Elem, depth+1)
		if err != nil {
			return types.TypeTag{}, err
		}
		return types.VectorTag(elem), nil
	case types.KindStruct, types.KindStructInstantiation:
		params := make([]types.TypeTag, len(ty.TypeArgs))
		for i, arg := range ty.TypeArgs {
			p, err := typeTag(arg, depth+1)
			if err != nil {
				return types.TypeTag{}, err
			}
			params[i] = p
		}
		return types.StructTypeTag(types.StructTag{
			Address:    ty.Struct.Module.Address,
			Module:     ty.Struct.Module.Name,
			Name:       ty.Struct.Name,
			TypeParams: params,
		}), nil
	default:
		return types.TypeTag{}, noTypeFor("type tag", ty)
	}
}

// TypeToTypeLayout returns the layout of values of a fully instantiated type
func (l *Loader) TypeToTypeLayout(ty types.Type) (types.TypeLayout, error) {
	return typeLayout(ty, 0)
}

func typeLayout(ty types.Type, depth int) (types.TypeLayout, error) {
	if depth > maxTypeDepth {
		return types.TypeLayout{}, noTypeFor("type layout (too deep)", ty)
	}
	switch ty.Kind {
	case types.KindBool:
		return types.BoolLayout, nil
	case types.KindU8:
		return types.U8Layout, nil
	case types.KindU64:
		return types.U64Layout, nil
	case types.KindU128:
		return types.U128Layout, nil
	case types.KindAddress:
		return types.AddressLayout, nil
	case types.KindSigner:
		return types.SignerLayout, nil
	case types.KindVector:
		elem, err := typeLayout(*ty.Elem, depth+1)
		if err != nil {
			return types.TypeLayout{}, err
		}
		return types.VectorLayout(elem), nil
	case types.KindStruct, types.KindStructInstantiation:
		if len(ty.TypeArgs) != ty.Struct.TypeParams {
			return types.TypeLayout{}, types.NewError(types.StatusNumberOfTypeArgumentsMismatch).
				WithMessage(fmt.Sprintf("%s takes %d type arguments", ty, ty.Struct.TypeParams))
		}
		fields := make([]types.TypeLayout, len(ty.Struct.Fields))
		for i, f := range ty.Struct.Fields {
			inst, err := f.Subst(ty.TypeArgs)
			if err != nil {
				return types.TypeLayout{}, err
			}
			layout, err := typeLayout(inst, depth+1)
			if err != nil {
				return types.TypeLayout{}, err
			}
			fields[i] = layout
		}
		return types.StructLayout(fields...), nil
	default:
		return types.TypeLayout{}, noTypeFor("type layout", ty)
	}
}

// LoadType resolves a type tag supplied by a caller, loading the modules
// declaring its structs.
func (l *Loader) LoadType(tag types.TypeTag, store ModuleStore) (types.Type, error) {
	return l.loadType(tag, store, 0)
}

func (l *Loader) loadType(tag types.TypeTag, store ModuleStore, depth int) (types.Type, error) {
	if depth > maxTypeDepth {
		return types.Type{}, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("type tag %s is too deep", tag))
	}
	switch tag.Kind {
	case types.TagBool:
		return types.BoolType, nil
	case types.TagU8:
		return types.U8Type, nil
	case types.TagU64:
		return types.U64Type, nil
	case types.TagU128:
		return types.U128Type, nil
	case types.TagAddress:
		return types.AddressType, nil
	case types.TagSigner:
		return types.SignerType, nil
	case types.TagVector:
		elem, err := l.loadType(*tag.Elem, store, depth+1)
		if err != nil {
			return types.Type{}, err
		}
		return types.VectorType(elem), nil
	case types.TagStruct:
		st := tag.Struct
		m, err := l.LoadModule(st.ModuleID(), store)
		if err != nil {
			return types.Type{}, err
		}
		s, ok := m.Struct(st.Name)
		if !ok {
			return types.Type{}, types.NewError(types.StatusLookupFailed).
				WithMessage(fmt.Sprintf("struct %s not found", st))
		}
		if len(st.TypeParams) != s.TypeParams {
			return types.Type{}, types.NewError(types.StatusNumberOfTypeArgumentsMismatch).
				WithMessage(fmt.Sprintf("%s takes %d type arguments", st, s.TypeParams))
		}
		if s.TypeParams == 0 {
			return types.StructOf(s), nil
		}
		args := make([]types.Type, len(st.TypeParams))
		for i, p := range st.TypeParams {
			arg, err := l.loadType(p, store, depth+1)
			if err != nil {
				return types.Type{}, err
			}
			args[i] = arg
		}
		return types.StructInstantiation(s, args...), nil
	default:
		return types.Type{}, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("unknown type tag kind %d", tag.Kind))
	}
}
