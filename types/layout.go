// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"
	"strings"
)

// U128 is an unsigned 128 bit integer
type U128 struct {
	Hi uint64
	Lo uint64
}

// U128From64 widens [v]
func U128From64(v uint64) U128 { return U128{Lo: v} }

// Compare returns -1, 0 or 1
func (u U128) Compare(o U128) int {
	switch {
	case u.Hi < o.Hi:
		return -1
	case u.Hi > o.Hi:
		return 1
	case u.Lo < o.Lo:
		return -1
	case u.Lo > o.Lo:
		return 1
	default:
		return 0
	}
}

// BigEndian returns the 16 byte big endian form
func (u U128) BigEndian() [16]byte {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(u.Hi >> (56 - 8*i))
		b[8+i] = byte(u.Lo >> (56 - 8*i))
	}
	return b
}

// U128FromBigEndian is the inverse of BigEndian
func U128FromBigEndian(b [16]byte) U128 {
	var u U128
	for i := 0; i < 8; i++ {
		u.Hi = u.Hi<<8 | uint64(b[i])
		u.Lo = u.Lo<<8 | uint64(b[8+i])
	}
	return u
}

func (u U128) String() string {
	if u.Hi == 0 {
		return fmt.Sprintf("%d", u.Lo)
	}
	return fmt.Sprintf("0x%x%016x", u.Hi, u.Lo)
}

// LayoutKind discriminates the variants of a TypeLayout
type LayoutKind byte

const (
	LayoutBool LayoutKind = iota
	LayoutU8
	LayoutU64
	LayoutU128
	LayoutAddress
	LayoutSigner
	LayoutVector
	LayoutStruct
)

// TypeLayout describes how a value of a runtime type is laid out, which is
// all that is needed to encode or decode it.
type TypeLayout struct {
	Kind   LayoutKind
	Elem   *TypeLayout
	Fields []TypeLayout
}

var (
	BoolLayout    = TypeLayout{Kind: LayoutBool}
	U8Layout      = TypeLayout{Kind: LayoutU8}
	U64Layout     = TypeLayout{Kind: LayoutU64}
	U128Layout    = TypeLayout{Kind: LayoutU128}
	AddressLayout = TypeLayout{Kind: LayoutAddress}
	SignerLayout  = TypeLayout{Kind: LayoutSigner}
)

// VectorLayout returns the layout of a vector of [elem]
func VectorLayout(elem TypeLayout) TypeLayout { return TypeLayout{Kind: LayoutVector, Elem: &elem} }

// StructLayout returns the layout of a struct with the given fields
func StructLayout(fields ...TypeLayout) TypeLayout {
	return TypeLayout{Kind: LayoutStruct, Fields: fields}
}

func (l TypeLayout) String() string {
	switch l.Kind {
	case LayoutBool:
		return "bool"
	case LayoutU8:
		return "u8"
	case LayoutU64:
		return "u64"
	case LayoutU128:
		return "u128"
	case LayoutAddress:
		return "address"
	case LayoutSigner:
		return "signer"
	case LayoutVector:
		return "vector<" + l.Elem.String() + ">"
	case LayoutStruct:
		fields := make([]string, len(l.Fields))
		for i, f := range l.Fields {
			fields[i] = f.String()
		}
		return "struct{" + strings.Join(fields, ", ") + "}"
	default:
		return fmt.Sprintf("unknown(%d)", l.Kind)
	}
}
