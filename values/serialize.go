// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package values

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/resourcevm/types"
)

const (
	// MaxValueSize bounds the encoding of a single value
	MaxValueSize = 1 << 20

	maxLayoutDepth = 64
)

var (
	errTrailingBytes  = errors.New("trailing bytes after value")
	errLayoutTooDeep  = errors.New("layout exceeds maximum depth")
	errVectorTooLong  = errors.New("vector length exceeds remaining bytes")
	errUnknownLayout  = errors.New("unknown layout kind")
	errFieldMismatch  = errors.New("struct field count does not match layout")
	errValueMismatch  = errors.New("value does not match layout")
	errNilLayoutInner = errors.New("vector layout without element layout")
)

// Serialize encodes [v] according to [layout]. References are encoded as
// the value they point to.
func Serialize(v Value, layout types.TypeLayout) ([]byte, error) {
	p := wrappers.Packer{MaxSize: MaxValueSize}
	if err := pack(&p, v, &layout, 0); err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes, nil
}

func pack(p *wrappers.Packer, v Value, layout *types.TypeLayout, depth int) error {
	if depth > maxLayoutDepth {
		return errLayoutTooDeep
	}
	if r, ok := v.(*Reference); ok {
		v = r.slot.get()
	}
	mismatch := func() error { return fmt.Errorf("%w: %v as %s", errValueMismatch, v, layout) }

	switch layout.Kind {
	case types.LayoutBool:
		b, ok := v.(Bool)
		if !ok {
			return mismatch()
		}
		p.PackBool(bool(b))
	case types.LayoutU8:
		n, ok := v.(U8)
		if !ok {
			return mismatch()
		}
		p.PackByte(byte(n))
	case types.LayoutU64:
		n, ok := v.(U64)
		if !ok {
			return mismatch()
		}
		p.PackLong(uint64(n))
	case types.LayoutU128:
		n, ok := v.(U128)
		if !ok {
			return mismatch()
		}
		p.PackLong(n.Hi)
		p.PackLong(n.Lo)
	case types.LayoutAddress:
		a, ok := v.(Address)
		if !ok {
			return mismatch()
		}
		p.PackFixedBytes(a[:])
	case types.LayoutSigner:
		s, ok := v.(Signer)
		if !ok {
			return mismatch()
		}
		p.PackFixedBytes(s[:])
	case types.LayoutVector:
		if layout.Elem == nil {
			return errNilLayoutInner
		}
		vec, ok := v.(*Vector)
		if !ok {
			return mismatch()
		}
		p.PackInt(uint32(len(vec.Elems)))
		for _, e := range vec.Elems {
			if err := pack(p, e, layout.Elem, depth+1); err != nil {
				return err
			}
		}
	case types.LayoutStruct:
		s, ok := v.(*Struct)
		if !ok {
			return mismatch()
		}
		if len(s.Fields) != len(layout.Fields) {
			return errFieldMismatch
		}
		for i := range s.Fields {
			if err := pack(p, s.Fields[i], &layout.Fields[i], depth+1); err != nil {
				return err
			}
		}
	default:
		return errUnknownLayout
	}
	return p.Err
}

// Deserialize decodes [b] according to [layout]. The whole input must be
// consumed.
func Deserialize(b []byte, layout types.TypeLayout) (Value, error) {
	if len(b) > MaxValueSize {
		return nil, fmt.Errorf("value of %d bytes exceeds maximum of %d", len(b), MaxValueSize)
	}
	p := wrappers.Packer{Bytes: b}
	v, err := unpack(&p, &layout, 0)
	if err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errTrailingBytes
	}
	return v, nil
}

// minSize is the smallest encoding of a value of [layout]
func minSize(layout *types.TypeLayout) int {
	switch layout.Kind {
	case types.LayoutBool, types.LayoutU8:
		return 1
	case types.LayoutU64:
		return wrappers.LongLen
	case types.LayoutU128:
		return 2 * wrappers.LongLen
	case types.LayoutAddress, types.LayoutSigner:
		return types.AddressLen
	case types.LayoutVector:
		return wrappers.IntLen
	case types.LayoutStruct:
		n := 0
		for i := range layout.Fields {
			n += minSize(&layout.Fields[i])
		}
		return n
	default:
		return 1
	}
}

func unpack(p *wrappers.Packer, layout *types.TypeLayout, depth int) (Value, error) {
	if depth > maxLayoutDepth {
		return nil, errLayoutTooDeep
	}
	switch layout.Kind {
	case types.LayoutBool:
		return Bool(p.UnpackBool()), p.Err
	case types.LayoutU8:
		return U8(p.UnpackByte()), p.Err
	case types.LayoutU64:
		return U64(p.UnpackLong()), p.Err
	case types.LayoutU128:
		hi := p.UnpackLong()
		lo := p.UnpackLong()
		return U128{Hi: hi, Lo: lo}, p.Err
	case types.LayoutAddress:
		var a Address
		copy(a[:], p.UnpackFixedBytes(types.AddressLen))
		return a, p.Err
	case types.LayoutSigner:
		var s Signer
		copy(s[:], p.UnpackFixedBytes(types.AddressLen))
		return s, p.Err
	case types.LayoutVector:
		if layout.Elem == nil {
			return nil, errNilLayoutInner
		}
		n := int(p.UnpackInt())
		if p.Errored() {
			return nil, p.Err
		}
		remaining := len(p.Bytes) - p.Offset
		if elemSize := minSize(layout.Elem); elemSize > 0 {
			if n > remaining/elemSize {
				return nil, errVectorTooLong
			}
		} else if n > MaxValueSize {
			return nil, errVectorTooLong
		}
		elems := make([]Value, n)
		for i := range elems {
			e, err := unpack(p, layout.Elem, depth+1)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return &Vector{Elems: elems}, nil
	case types.LayoutStruct:
		fields := make([]Value, len(layout.Fields))
		for i := range fields {
			f, err := unpack(p, &layout.Fields[i], depth+1)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return &Struct{Fields: fields}, nil
	default:
		return nil, errUnknownLayout
	}
}
