// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// TagKind discriminates the variants of a TypeTag
type TagKind byte

const (
	TagBool TagKind = iota
	TagU8
	TagU64
	TagU128
	TagAddress
	TagSigner
	TagVector
	TagStruct
)

const maxTagSize = 64 * 1024

var errUnknownTagKind = errors.New("unknown type tag kind")

// TypeTag is the storage-facing name of a fully instantiated type
type TypeTag struct {
	Kind   TagKind
	Elem   *TypeTag
	Struct *StructTag
}

// StructTag names a struct type together with its type arguments
type StructTag struct {
	Address    AccountAddress
	Module     Identifier
	Name       Identifier
	TypeParams []TypeTag
}

var (
	BoolTag    = TypeTag{Kind: TagBool}
	U8Tag      = TypeTag{Kind: TagU8}
	U64Tag     = TypeTag{Kind: TagU64}
	U128Tag    = TypeTag{Kind: TagU128}
	AddressTag = TypeTag{Kind: TagAddress}
	SignerTag  = TypeTag{Kind: TagSigner}
)

// VectorTag returns the tag of vector<elem>
func VectorTag(elem TypeTag) TypeTag { return TypeTag{Kind: TagVector, Elem: &elem} }

// StructTypeTag wraps [s] in a TypeTag
func StructTypeTag(s StructTag) TypeTag { return TypeTag{Kind: TagStruct, Struct: &s} }

// ModuleID returns the id of the module declaring the struct
func (s StructTag) ModuleID() ModuleID { return NewModuleID(s.Address, s.Module) }

func (s StructTag) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s::%s::%s", s.Address, s.Module, s.Name)
	if len(s.TypeParams) > 0 {
		b.WriteString("<")
		for i, p := range s.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteString(">")
	}
	return b.String()
}

// Bytes returns the canonical encoding of the struct tag. It is used as the
// storage key of a resource under an account.
func (s StructTag) Bytes() []byte {
	p := wrappers.Packer{MaxSize: maxTagSize}
	packStructTag(&p, &s)
	return p.Bytes
}

func (t TypeTag) String() string {
	switch t.Kind {
	case TagBool:
		return "bool"
	case TagU8:
		return "u8"
	case TagU64:
		return "u64"
	case TagU128:
		return "u128"
	case TagAddress:
		return "address"
	case TagSigner:
		return "signer"
	case TagVector:
		return "vector<" + t.Elem.String() + ">"
	case TagStruct:
		return t.Struct.String()
	default:
		return fmt.Sprintf("unknown(%d)", t.Kind)
	}
}

// Bytes returns the canonical encoding of the type tag
func (t TypeTag) Bytes() []byte {
	p := wrappers.Packer{MaxSize: maxTagSize}
	packTypeTag(&p, &t)
	return p.Bytes
}

// Equal reports structural equality
func (t TypeTag) Equal(o TypeTag) bool { return t.String() == o.String() }

func packTypeTag(p *wrappers.Packer, t *TypeTag) {
	p.PackByte(byte(t.Kind))
	switch t.Kind {
	case TagVector:
		packTypeTag(p, t.Elem)
	case TagStruct:
		packStructTag(p, t.Struct)
	}
}

func packStructTag(p *wrappers.Packer, s *StructTag) {
	p.PackFixedBytes(s.Address[:])
	p.PackStr(string(s.Module))
	p.PackStr(string(s.Name))
	p.PackInt(uint32(len(s.TypeParams)))
	for i := range s.TypeParams {
		packTypeTag(p, &s.TypeParams[i])
	}
}

// ParseStructTagBytes decodes the canonical encoding produced by StructTag.Bytes
func ParseStructTagBytes(b []byte) (StructTag, error) {
	p := wrappers.Packer{Bytes: b}
	s := unpackStructTag(&p, 0)
	if p.Errored() {
		return StructTag{}, p.Err
	}
	if p.Offset != len(b) {
		return StructTag{}, errTrailingBytes
	}
	return *s, nil
}

const maxTagDepth = 32

var (
	errTrailingBytes = errors.New("trailing bytes after value")
	errTagTooDeep    = errors.New("type tag nesting too deep")
)

func unpackTypeTag(p *wrappers.Packer, depth int) TypeTag {
	if depth > maxTagDepth {
		p.Add(errTagTooDeep)
		return TypeTag{}
	}
	t := TypeTag{Kind: TagKind(p.UnpackByte())}
	switch t.Kind {
	case TagBool, TagU8, TagU64, TagU128, TagAddress, TagSigner:
	case TagVector:
		elem := unpackTypeTag(p, depth+1)
		t.Elem = &elem
	case TagStruct:
		t.Struct = unpackStructTag(p, depth+1)
	default:
		p.Add(errUnknownTagKind)
	}
	return t
}

func unpackStructTag(p *wrappers.Packer, depth int) *StructTag {
	s := &StructTag{}
	copy(s.Address[:], p.UnpackFixedBytes(AddressLen))
	s.Module = Identifier(p.UnpackStr())
	s.Name = Identifier(p.UnpackStr())
	n := p.UnpackInt()
	if p.Errored() {
		return s
	}
	if int(n) > len(p.Bytes)-p.Offset {
		p.Add(errTrailingBytes)
		return s
	}
	for i := uint32(0); i < n && !p.Errored(); i++ {
		s.TypeParams = append(s.TypeParams, unpackTypeTag(p, depth+1))
	}
	return s
}

// ParseTypeTag parses the textual form of a type tag, for example
// vector<0x1::Coin::Coin<u64>>.
func ParseTypeTag(s string) (TypeTag, error) {
	tp := &tagParser{src: s}
	t, err := tp.typeTag()
	if err != nil {
		return TypeTag{}, err
	}
	tp.skipSpace()
	if tp.pos != len(tp.src) {
		return TypeTag{}, fmt.Errorf("unexpected %q at offset %d in %q", tp.src[tp.pos:], tp.pos, s)
	}
	return t, nil
}

// ParseStructTag parses the textual form of a struct tag
func ParseStructTag(s string) (StructTag, error) {
	t, err := ParseTypeTag(s)
	if err != nil {
		return StructTag{}, err
	}
	if t.Kind != TagStruct {
		return StructTag{}, fmt.Errorf("%q is not a struct type", s)
	}
	return *t.Struct, nil
}

type tagParser struct {
	src string
	pos int
}

func (tp *tagParser) skipSpace() {
	for tp.pos < len(tp.src) && tp.src[tp.pos] == ' ' {
		tp.pos++
	}
}

func (tp *tagParser) token() string {
	tp.skipSpace()
	start := tp.pos
	for tp.pos < len(tp.src) {
		c := tp.src[tp.pos]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			break
		}
		tp.pos++
	}
	return tp.src[start:tp.pos]
}

func (tp *tagParser) expect(lit string) error {
	tp.skipSpace()
	if !strings.HasPrefix(tp.src[tp.pos:], lit) {
		return fmt.Errorf("expected %q at offset %d in %q", lit, tp.pos, tp.src)
	}
	tp.pos += len(lit)
	return nil
}

func (tp *tagParser) peek(lit string) bool {
	tp.skipSpace()
	return strings.HasPrefix(tp.src[tp.pos:], lit)
}

func (tp *tagParser) typeTag() (TypeTag, error) {
	tok := tp.token()
	switch tok {
	case "bool":
		return BoolTag, nil
	case "u8":
		return U8Tag, nil
	case "u64":
		return U64Tag, nil
	case "u128":
		return U128Tag, nil
	case "address":
		return AddressTag, nil
	case "signer":
		return SignerTag, nil
	case "vector":
		if err := tp.expect("<"); err != nil {
			return TypeTag{}, err
		}
		elem, err := tp.typeTag()
		if err != nil {
			return TypeTag{}, err
		}
		if err := tp.expect(">"); err != nil {
			return TypeTag{}, err
		}
		return VectorTag(elem), nil
	case "":
		return TypeTag{}, fmt.Errorf("expected type at offset %d in %q", tp.pos, tp.src)
	}

	addr, err := ParseAddress(tok)
	if err != nil {
		return TypeTag{}, err
	}
	if err := tp.expect("::"); err != nil {
		return TypeTag{}, err
	}
	module := Identifier(tp.token())
	if err := tp.expect("::"); err != nil {
		return TypeTag{}, err
	}
	name := Identifier(tp.token())
	if !module.IsValid() || !name.IsValid() {
		return TypeTag{}, fmt.Errorf("invalid struct name in %q", tp.src)
	}
	st := StructTag{Address: addr, Module: module, Name: name}
	if tp.peek("<") {
		tp.pos++
		for {
			param, err := tp.typeTag()
			if err != nil {
				return TypeTag{}, err
			}
			st.TypeParams = append(st.TypeParams, param)
			if tp.peek(",") {
				tp.pos++
				continue
			}
			if err := tp.expect(">"); err != nil {
				return TypeTag{}, err
			}
			break
		}
	}
	return StructTypeTag(st), nil
}
