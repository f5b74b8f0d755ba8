// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

import (
	"github.com/ava-labs/resourcevm/types"
)

// ModuleBuilder assembles a CompiledModule handle by handle
type ModuleBuilder struct {
	m *CompiledModule
}

// NewModuleBuilder starts a module named [id]
func NewModuleBuilder(id types.ModuleID) *ModuleBuilder {
	return &ModuleBuilder{m: &CompiledModule{
		ModuleHandles: []ModuleHandle{{ID: id}},
	}}
}

// ModuleHandle returns the handle of [id], adding it if needed
func (b *ModuleBuilder) ModuleHandle(id types.ModuleID) uint16 {
	for i, h := range b.m.ModuleHandles {
		if h.ID == id {
			return uint16(i)
		}
	}
	b.m.ModuleHandles = append(b.m.ModuleHandles, ModuleHandle{ID: id})
	return uint16(len(b.m.ModuleHandles) - 1)
}

// Struct defines struct [name] in the module and returns its handle
func (b *ModuleBuilder) Struct(name types.Identifier, abilities types.Abilities, typeParams uint16, fields ...FieldDefinition) uint16 {
	idx := b.structHandle(b.m.SelfHandle, name, abilities, typeParams)
	b.m.StructDefs = append(b.m.StructDefs, StructDefinition{Handle: idx, Fields: fields})
	return idx
}

// StructRef declares struct [name] of module [id] and returns its handle
func (b *ModuleBuilder) StructRef(id types.ModuleID, name types.Identifier, abilities types.Abilities, typeParams uint16) uint16 {
	return b.structHandle(b.ModuleHandle(id), name, abilities, typeParams)
}

func (b *ModuleBuilder) structHandle(module uint16, name types.Identifier, abilities types.Abilities, typeParams uint16) uint16 {
	b.m.StructHandles = append(b.m.StructHandles, StructHandle{
		Module:     module,
		Name:       name,
		Abilities:  uint8(abilities),
		TypeParams: typeParams,
	})
	return uint16(len(b.m.StructHandles) - 1)
}

// Function defines function [name] in the module and returns its handle
func (b *ModuleBuilder) Function(
	name types.Identifier,
	visibility Visibility,
	native bool,
	typeParams []uint8,
	params []SignatureToken,
	ret []SignatureToken,
) uint16 {
	idx := b.functionHandle(b.m.SelfHandle, name, typeParams, params, ret)
	b.m.FunctionDefs = append(b.m.FunctionDefs, FunctionDefinition{
		Handle:     idx,
		Visibility: visibility,
		Native:     native,
	})
	return idx
}

// FunctionRef declares function [name] of module [id] and returns its handle
func (b *ModuleBuilder) FunctionRef(
	id types.ModuleID,
	name types.Identifier,
	typeParams []uint8,
	params []SignatureToken,
	ret []SignatureToken,
) uint16 {
	return b.functionHandle(b.ModuleHandle(id), name, typeParams, params, ret)
}

func (b *ModuleBuilder) functionHandle(
	module uint16,
	name types.Identifier,
	typeParams []uint8,
	params []SignatureToken,
	ret []SignatureToken,
) uint16 {
	b.m.FunctionHandles = append(b.m.FunctionHandles, FunctionHandle{
		Module:     module,
		Name:       name,
		TypeParams: typeParams,
		Parameters: params,
		Return:     ret,
	})
	return uint16(len(b.m.FunctionHandles) - 1)
}

// Build returns the module
func (b *ModuleBuilder) Build() *CompiledModule { return b.m }

// Bytes returns the serialized module
func (b *ModuleBuilder) Bytes() ([]byte, error) { return SerializeModule(b.m) }
