// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package values

import (
	"fmt"
	"strings"

	"github.com/ava-labs/resourcevm/types"
)

// Value is a VM value. Vectors and structs are containers and are shared by
// pointer; every other value is immutable.
type Value interface {
	fmt.Stringer
	isValue()
}

type (
	Bool    bool
	U8      uint8
	U64     uint64
	U128    types.U128
	Address types.AccountAddress
	// Signer is the capability to act on behalf of an address
	Signer types.AccountAddress
)

// Vector is a growable, homogeneous container
type Vector struct {
	Elems []Value
}

// Struct is a fixed size record
type Struct struct {
	Fields []Value
}

func (Bool) isValue()       {}
func (U8) isValue()         {}
func (U64) isValue()        {}
func (U128) isValue()       {}
func (Address) isValue()    {}
func (Signer) isValue()     {}
func (*Vector) isValue()    {}
func (*Struct) isValue()    {}
func (*Reference) isValue() {}

func (v Bool) String() string    { return fmt.Sprintf("%t", bool(v)) }
func (v U8) String() string      { return fmt.Sprintf("%du8", uint8(v)) }
func (v U64) String() string     { return fmt.Sprintf("%du64", uint64(v)) }
func (v U128) String() string    { return types.U128(v).String() + "u128" }
func (v Address) String() string { return types.AccountAddress(v).String() }
func (v Signer) String() string  { return "signer(" + types.AccountAddress(v).String() + ")" }

func (v *Vector) String() string { return "[" + joinValues(v.Elems) + "]" }
func (v *Struct) String() string { return "{" + joinValues(v.Fields) + "}" }

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// NewStruct returns a struct holding [fields]
func NewStruct(fields ...Value) *Struct { return &Struct{Fields: fields} }

// NewVector returns a vector holding [elems]
func NewVector(elems ...Value) *Vector { return &Vector{Elems: elems} }

// ByteVector returns vector<u8> holding [b]
func ByteVector(b []byte) *Vector {
	elems := make([]Value, len(b))
	for i, c := range b {
		elems[i] = U8(c)
	}
	return &Vector{Elems: elems}
}

// AsBytes converts a vector<u8> back into a byte slice
func AsBytes(v Value) ([]byte, error) {
	vec, ok := v.(*Vector)
	if !ok {
		return nil, typeError("vector<u8>", v)
	}
	b := make([]byte, len(vec.Elems))
	for i, e := range vec.Elems {
		c, ok := e.(U8)
		if !ok {
			return nil, typeError("u8", e)
		}
		b[i] = byte(c)
	}
	return b, nil
}

// Copy returns a deep copy of [v]. References are copied shallowly, since
// they denote a location rather than a value.
func Copy(v Value) Value {
	switch c := v.(type) {
	case *Vector:
		elems := make([]Value, len(c.Elems))
		for i, e := range c.Elems {
			elems[i] = Copy(e)
		}
		return &Vector{Elems: elems}
	case *Struct:
		fields := make([]Value, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = Copy(f)
		}
		return &Struct{Fields: fields}
	default:
		return v
	}
}

// Equal reports structural equality of two values
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case *Vector:
		y, ok := b.(*Vector)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Struct:
		y, ok := b.(*Struct)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if !Equal(x.Fields[i], y.Fields[i]) {
				return false
			}
		}
		return true
	case *Reference:
		y, ok := b.(*Reference)
		return ok && Equal(x.slot.get(), y.slot.get())
	default:
		return a == b
	}
}

func typeError(want string, got Value) *types.VMError {
	return types.NewError(types.StatusInternalTypeError).
		WithMessage(fmt.Sprintf("expected %s, found %v", want, got))
}
