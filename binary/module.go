// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ava-labs/resourcevm/types"
)

// TokenKind discriminates the variants of a SignatureToken
type TokenKind uint8

const (
	TokenBool TokenKind = iota
	TokenU8
	TokenU64
	TokenU128
	TokenAddress
	TokenSigner
	TokenVector
	TokenStruct
	TokenStructInstantiation
	TokenReference
	TokenMutableReference
	TokenTypeParameter
)

// SignatureToken is a type as written in compiled code. Struct types refer to
// a struct handle of the enclosing module or script by index.
type SignatureToken struct {
	Kind TokenKind `serialize:"true" json:"kind"`
	// Index is a struct handle for struct tokens and a type parameter
	// position for type parameter tokens.
	Index uint16 `serialize:"true" json:"index"`
	// Args holds the element of vectors and references and the type
	// arguments of struct instantiations.
	Args []SignatureToken `serialize:"true" json:"args"`
}

var (
	BoolToken    = SignatureToken{Kind: TokenBool}
	U8Token      = SignatureToken{Kind: TokenU8}
	U64Token     = SignatureToken{Kind: TokenU64}
	U128Token    = SignatureToken{Kind: TokenU128}
	AddressToken = SignatureToken{Kind: TokenAddress}
	SignerToken  = SignatureToken{Kind: TokenSigner}
)

func VectorToken(elem SignatureToken) SignatureToken {
	return SignatureToken{Kind: TokenVector, Args: []SignatureToken{elem}}
}

func ReferenceToken(inner SignatureToken) SignatureToken {
	return SignatureToken{Kind: TokenReference, Args: []SignatureToken{inner}}
}

func MutableReferenceToken(inner SignatureToken) SignatureToken {
	return SignatureToken{Kind: TokenMutableReference, Args: []SignatureToken{inner}}
}

func StructToken(handle uint16) SignatureToken {
	return SignatureToken{Kind: TokenStruct, Index: handle}
}

func StructInstantiationToken(handle uint16, args ...SignatureToken) SignatureToken {
	return SignatureToken{Kind: TokenStructInstantiation, Index: handle, Args: args}
}

func TypeParameterToken(idx uint16) SignatureToken {
	return SignatureToken{Kind: TokenTypeParameter, Index: idx}
}

// Visibility of a function definition
type Visibility uint8

const (
	Private Visibility = iota
	Public
	// Script functions may be called directly by a transaction
	Script
	Friend
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Public:
		return "public"
	case Script:
		return "script"
	case Friend:
		return "friend"
	default:
		return fmt.Sprintf("visibility(%d)", uint8(v))
	}
}

// ModuleHandle refers to a module, this one or a dependency
type ModuleHandle struct {
	ID types.ModuleID `serialize:"true" json:"id"`
}

// StructHandle refers to a struct declared by the module at [Module]
type StructHandle struct {
	Module     uint16           `serialize:"true" json:"module"`
	Name       types.Identifier `serialize:"true" json:"name"`
	Abilities  uint8            `serialize:"true" json:"abilities"`
	TypeParams uint16           `serialize:"true" json:"typeParams"`
}

// FieldDefinition is a named, typed struct field
type FieldDefinition struct {
	Name types.Identifier `serialize:"true" json:"name"`
	Type SignatureToken   `serialize:"true" json:"type"`
}

// StructDefinition defines the struct behind a handle owned by this module
type StructDefinition struct {
	Handle uint16            `serialize:"true" json:"handle"`
	Native bool              `serialize:"true" json:"native"`
	Fields []FieldDefinition `serialize:"true" json:"fields"`
}

// FunctionHandle is a function signature of this module or a dependency
type FunctionHandle struct {
	Module     uint16           `serialize:"true" json:"module"`
	Name       types.Identifier `serialize:"true" json:"name"`
	TypeParams []uint8          `serialize:"true" json:"typeParams"`
	Parameters []SignatureToken `serialize:"true" json:"parameters"`
	Return     []SignatureToken `serialize:"true" json:"return"`
}

// FunctionDefinition defines the function behind a handle owned by this
// module. Code is opaque to everything but the interpreter.
type FunctionDefinition struct {
	Handle     uint16     `serialize:"true" json:"handle"`
	Visibility Visibility `serialize:"true" json:"visibility"`
	Native     bool       `serialize:"true" json:"native"`
	Acquires   []uint16   `serialize:"true" json:"acquires"`
	Code       []byte     `serialize:"true" json:"code"`
}

// CompiledModule is the published form of a module
type CompiledModule struct {
	SelfHandle      uint16               `serialize:"true" json:"selfHandle"`
	ModuleHandles   []ModuleHandle       `serialize:"true" json:"moduleHandles"`
	StructHandles   []StructHandle       `serialize:"true" json:"structHandles"`
	FunctionHandles []FunctionHandle     `serialize:"true" json:"functionHandles"`
	StructDefs      []StructDefinition   `serialize:"true" json:"structDefs"`
	FunctionDefs    []FunctionDefinition `serialize:"true" json:"functionDefs"`
}

// CompiledScript is a transaction script. Its entry function is anonymous.
type CompiledScript struct {
	ModuleHandles   []ModuleHandle   `serialize:"true" json:"moduleHandles"`
	StructHandles   []StructHandle   `serialize:"true" json:"structHandles"`
	FunctionHandles []FunctionHandle `serialize:"true" json:"functionHandles"`
	TypeParams      []uint8          `serialize:"true" json:"typeParams"`
	Parameters      []SignatureToken `serialize:"true" json:"parameters"`
	Return          []SignatureToken `serialize:"true" json:"return"`
	Code            []byte           `serialize:"true" json:"code"`
}

// Self returns the id of the module
func (m *CompiledModule) Self() types.ModuleID { return m.ModuleHandles[m.SelfHandle].ID }

// Address returns the address the module is published under
func (m *CompiledModule) Address() types.AccountAddress { return m.Self().Address }

// Name returns the module's name
func (m *CompiledModule) Name() types.Identifier { return m.Self().Name }

// ImmediateDependencies returns the modules this module refers to, in
// ascending order.
func (m *CompiledModule) ImmediateDependencies() []types.ModuleID {
	seen := make(map[types.ModuleID]struct{}, len(m.ModuleHandles))
	deps := make([]types.ModuleID, 0, len(m.ModuleHandles))
	for i, h := range m.ModuleHandles {
		if uint16(i) == m.SelfHandle {
			continue
		}
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		deps = append(deps, h.ID)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Less(deps[j]) })
	return deps
}

// ImmediateDependencies returns the modules the script refers to
func (s *CompiledScript) ImmediateDependencies() []types.ModuleID {
	seen := make(map[types.ModuleID]struct{}, len(s.ModuleHandles))
	deps := make([]types.ModuleID, 0, len(s.ModuleHandles))
	for _, h := range s.ModuleHandles {
		if _, ok := seen[h.ID]; ok {
			continue
		}
		seen[h.ID] = struct{}{}
		deps = append(deps, h.ID)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Less(deps[j]) })
	return deps
}

// StructDefByName returns the definition of struct [name]
func (m *CompiledModule) StructDefByName(name types.Identifier) (*StructDefinition, bool) {
	for i := range m.StructDefs {
		if m.StructHandles[m.StructDefs[i].Handle].Name == name {
			return &m.StructDefs[i], true
		}
	}
	return nil, false
}

// FunctionDefByName returns the definition of function [name]
func (m *CompiledModule) FunctionDefByName(name types.Identifier) (*FunctionDefinition, bool) {
	for i := range m.FunctionDefs {
		if m.FunctionHandles[m.FunctionDefs[i].Handle].Name == name {
			return &m.FunctionDefs[i], true
		}
	}
	return nil, false
}

// Handles gives name resolution over the handle tables shared by modules
// and scripts.
type Handles struct {
	Modules []ModuleHandle
	Structs []StructHandle
}

// Handles returns the module's handle tables
func (m *CompiledModule) Handles() Handles {
	return Handles{Modules: m.ModuleHandles, Structs: m.StructHandles}
}

// Handles returns the script's handle tables
func (s *CompiledScript) Handles() Handles {
	return Handles{Modules: s.ModuleHandles, Structs: s.StructHandles}
}

// StructName returns the fully qualified name of struct handle [idx]
func (h Handles) StructName(idx uint16) (types.ModuleID, types.Identifier) {
	sh := h.Structs[idx]
	return h.Modules[sh.Module].ID, sh.Name
}

// TokenString renders [t] with struct handles resolved to qualified names,
// so that tokens from different modules compare equal when they denote the
// same type.
func (h Handles) TokenString(t SignatureToken) string {
	switch t.Kind {
	case TokenBool:
		return "bool"
	case TokenU8:
		return "u8"
	case TokenU64:
		return "u64"
	case TokenU128:
		return "u128"
	case TokenAddress:
		return "address"
	case TokenSigner:
		return "signer"
	case TokenVector:
		return "vector<" + h.TokenString(t.Args[0]) + ">"
	case TokenReference:
		return "&" + h.TokenString(t.Args[0])
	case TokenMutableReference:
		return "&mut " + h.TokenString(t.Args[0])
	case TokenTypeParameter:
		return fmt.Sprintf("T%d", t.Index)
	case TokenStruct:
		mod, name := h.StructName(t.Index)
		return fmt.Sprintf("%s::%s", mod, name)
	case TokenStructInstantiation:
		mod, name := h.StructName(t.Index)
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = h.TokenString(a)
		}
		return fmt.Sprintf("%s::%s<%s>", mod, name, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("token(%d)", t.Kind)
	}
}

func (h Handles) signatureString(sig []SignatureToken) string {
	parts := make([]string, len(sig))
	for i, t := range sig {
		parts[i] = h.TokenString(t)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
