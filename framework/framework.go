// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package framework declares the modules published at genesis and the
// natives backing them.
package framework

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/runtime"
	"github.com/ava-labs/resourcevm/state"
	"github.com/ava-labs/resourcevm/tables"
	"github.com/ava-labs/resourcevm/types"
)

// Address is the account holding the framework modules
var Address = types.MustParseAddress("0x1")

// Natives returns every native function of the framework
func Natives() *natives.Table {
	t := natives.NewTable(natives.Standard(Address)...)
	t.Add(tables.Natives(Address)...)
	return t
}

func signerModule() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(types.NewModuleID(Address, "Signer"))
	b.Function("borrow_address", binary.Public, true, nil,
		[]binary.SignatureToken{binary.ReferenceToken(binary.SignerToken)},
		[]binary.SignatureToken{binary.ReferenceToken(binary.AddressToken)},
	)
	return b
}

func eventModule() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(types.NewModuleID(Address, "Event"))
	b.Struct("EventHandle", types.AbilityStore, 1,
		binary.FieldDefinition{Name: "counter", Type: binary.U64Token},
		binary.FieldDefinition{Name: "guid", Type: binary.VectorToken(binary.U8Token)},
	)
	b.Function("write_to_event_store", binary.Public, true, []uint8{uint8(types.AbilityStore)},
		[]binary.SignatureToken{binary.VectorToken(binary.U8Token), binary.U64Token, binary.TypeParameterToken(0)},
		nil,
	)
	return b
}

// tableModule declares Table<K, V> and its natives. Every native takes the
// key, value and boxed value types.
func tableModule() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(types.NewModuleID(Address, "Table"))
	tbl := b.Struct("Table", types.AbilityStore, 2,
		binary.FieldDefinition{Name: "handle", Type: binary.U128Token},
	)
	b.Struct("Box", types.AbilityStore|types.AbilityDrop, 1,
		binary.FieldDefinition{Name: "val", Type: binary.TypeParameterToken(0)},
	)

	var (
		k, box      = binary.TypeParameterToken(0), binary.TypeParameterToken(2)
		table       = binary.StructInstantiationToken(tbl, k, binary.TypeParameterToken(1))
		ref         = binary.ReferenceToken(table)
		mutRef      = binary.MutableReferenceToken(table)
		constraints = []uint8{uint8(types.AbilityCopy | types.AbilityDrop), 0, 0}
	)
	native := func(name types.Identifier, params []binary.SignatureToken, ret ...binary.SignatureToken) {
		b.Function(name, binary.Public, true, constraints, params, ret)
	}
	native("new_table_handle", nil, binary.U128Token)
	native("add_box", []binary.SignatureToken{mutRef, k, box})
	native("length_box", []binary.SignatureToken{ref}, binary.U64Token)
	native("borrow_box", []binary.SignatureToken{ref, k}, binary.ReferenceToken(box))
	native("borrow_box_mut", []binary.SignatureToken{mutRef, k}, binary.MutableReferenceToken(box))
	native("remove_box", []binary.SignatureToken{mutRef, k}, box)
	native("contains_box", []binary.SignatureToken{ref, k}, binary.BoolToken)
	native("destroy_empty_box", []binary.SignatureToken{ref})
	native("drop_unchecked_box", []binary.SignatureToken{table})
	return b
}

// Modules returns the serialized framework bundle
func Modules() ([][]byte, error) {
	builders := []*binary.ModuleBuilder{signerModule(), eventModule(), tableModule()}
	bundle := make([][]byte, len(builders))
	for i, b := range builders {
		blob, err := b.Bytes()
		if err != nil {
			return nil, err
		}
		bundle[i] = blob
	}
	return bundle, nil
}

// GenesisID identifies [bundle]
func GenesisID(bundle [][]byte) ids.ID {
	size := 0
	for _, blob := range bundle {
		size += wrappers.IntLen + len(blob)
	}
	p := wrappers.Packer{MaxSize: size}
	for _, blob := range bundle {
		p.PackBytes(blob)
	}
	return ids.ID(hashing.ComputeHash256Array(p.Bytes))
}

// Initialize publishes the framework into [st] unless it already holds a
// genesis
func Initialize(vm *runtime.VM, st state.State) error {
	bundle, err := Modules()
	if err != nil {
		return err
	}
	genesisID := GenesisID(bundle)

	initialized, err := st.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		stored, err := st.GenesisID()
		if err != nil {
			return err
		}
		if stored != genesisID {
			log.Warn("state was created from a different framework", "stored", stored, "current", genesisID)
		}
		return nil
	}

	session := vm.NewSession(st)
	if err := session.PublishModuleBundle(bundle, Address, gas.Unmetered()); err != nil {
		return fmt.Errorf("error while publishing framework: %w", err)
	}
	changes, events, err := session.Finish()
	if err != nil {
		return err
	}
	if err := st.Apply(changes, events, nil); err != nil {
		st.Abort()
		return err
	}
	if err := st.SetInitialized(genesisID); err != nil {
		st.Abort()
		return fmt.Errorf("error while setting db to initialized: %w", err)
	}
	log.Info("published framework", "genesisID", genesisID, "modules", len(bundle))
	return st.Commit()
}
