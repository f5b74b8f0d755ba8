// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"
	"strings"
)

// Kind discriminates the variants of a runtime Type
type Kind byte

const (
	KindBool Kind = iota
	KindU8
	KindU64
	KindU128
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindStructInstantiation
	KindReference
	KindMutableReference
	KindTyParam
)

// Abilities is the bit set of abilities declared on a struct
type Abilities uint8

const (
	AbilityCopy Abilities = 1 << iota
	AbilityDrop
	AbilityStore
	AbilityKey
)

// Has reports whether every ability in [o] is in [a]
func (a Abilities) Has(o Abilities) bool { return a&o == o }

// StructType is a struct definition resolved by the loader
type StructType struct {
	Module     ModuleID
	Name       Identifier
	Abilities  Abilities
	TypeParams int
	FieldNames []Identifier
	// Fields may refer to the struct's type parameters
	Fields []Type
}

// Type is a runtime type as resolved by the loader. Unlike a TypeTag it may
// be a reference or an uninstantiated type parameter.
type Type struct {
	Kind     Kind
	Elem     *Type
	Struct   *StructType
	TypeArgs []Type
	Param    uint16
}

var (
	BoolType    = Type{Kind: KindBool}
	U8Type      = Type{Kind: KindU8}
	U64Type     = Type{Kind: KindU64}
	U128Type    = Type{Kind: KindU128}
	AddressType = Type{Kind: KindAddress}
	SignerType  = Type{Kind: KindSigner}
)

// VectorType returns vector<elem>
func VectorType(elem Type) Type { return Type{Kind: KindVector, Elem: &elem} }

// ReferenceType returns &inner
func ReferenceType(inner Type) Type { return Type{Kind: KindReference, Elem: &inner} }

// MutableReferenceType returns &mut inner
func MutableReferenceType(inner Type) Type { return Type{Kind: KindMutableReference, Elem: &inner} }

// TyParamType returns the [idx]th type parameter
func TyParamType(idx uint16) Type { return Type{Kind: KindTyParam, Param: idx} }

// StructOf returns the type of the non generic struct [s]
func StructOf(s *StructType) Type { return Type{Kind: KindStruct, Struct: s} }

// StructInstantiation returns s<args...>
func StructInstantiation(s *StructType, args ...Type) Type {
	return Type{Kind: KindStructInstantiation, Struct: s, TypeArgs: args}
}

// IsSigner reports whether [t] is signer
func (t Type) IsSigner() bool { return t.Kind == KindSigner }

// IsSignerReference reports whether [t] is &signer
func (t Type) IsSignerReference() bool {
	return t.Kind == KindReference && t.Elem != nil && t.Elem.Kind == KindSigner
}

// IsReference reports whether [t] is an immutable or mutable reference
func (t Type) IsReference() bool {
	return t.Kind == KindReference || t.Kind == KindMutableReference
}

// Subst replaces every type parameter in [t] with the matching entry of
// [tyArgs].
func (t Type) Subst(tyArgs []Type) (Type, error) {
	switch t.Kind {
	case KindTyParam:
		if int(t.Param) >= len(tyArgs) {
			return Type{}, NewError(StatusUnknownInvariantViolation).
				WithMessage(fmt.Sprintf("type parameter %d out of range of %d type arguments", t.Param, len(tyArgs)))
		}
		return tyArgs[t.Param], nil
	case KindVector, KindReference, KindMutableReference:
		inner, err := t.Elem.Subst(tyArgs)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: t.Kind, Elem: &inner}, nil
	case KindStructInstantiation:
		args := make([]Type, len(t.TypeArgs))
		for i, arg := range t.TypeArgs {
			s, err := arg.Subst(tyArgs)
			if err != nil {
				return Type{}, err
			}
			args[i] = s
		}
		return StructInstantiation(t.Struct, args...), nil
	default:
		return t, nil
	}
}

// Key returns a canonical string that is equal for equal types. It is used
// to key per-type caches.
func (t Type) Key() string { return t.String() }

func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return "vector<" + t.Elem.String() + ">"
	case KindReference:
		return "&" + t.Elem.String()
	case KindMutableReference:
		return "&mut " + t.Elem.String()
	case KindTyParam:
		return fmt.Sprintf("T%d", t.Param)
	case KindStruct:
		return fmt.Sprintf("%s::%s", t.Struct.Module, t.Struct.Name)
	case KindStructInstantiation:
		args := make([]string, len(t.TypeArgs))
		for i, arg := range t.TypeArgs {
			args[i] = arg.String()
		}
		return fmt.Sprintf("%s::%s<%s>", t.Struct.Module, t.Struct.Name, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("unknown(%d)", t.Kind)
	}
}
