// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package datacache holds the per transaction view of resources, modules
// and events. Remote state is fetched on first access and every change stays
// local until the session's effects are handed to the caller.
package datacache

import (
	"fmt"
	"sort"

	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

var _ DataStore = (*TransactionDataCache)(nil)

// TypeConverter maps runtime types to the tags and layouts needed to address
// and encode stored values. The loader implements it.
type TypeConverter interface {
	TypeToTypeTag(ty types.Type) (types.TypeTag, error)
	TypeToTypeLayout(ty types.Type) (types.TypeLayout, error)
}

// DataStore is the storage view handed to the interpreter and to natives
type DataStore interface {
	// LoadResource returns the global value slot of [ty] under [addr]
	LoadResource(addr types.AccountAddress, ty types.Type) (*values.GlobalValue, error)
	// LoadModule returns the blob of module [id]
	LoadModule(id types.ModuleID) ([]byte, error)
	// PublishModule stages [blob] as module [id]
	PublishModule(id types.ModuleID, blob []byte) error
	// ExistsModule reports whether module [id] is published or staged
	ExistsModule(id types.ModuleID) (bool, error)
	// EmitEvent appends an event to the session's event log
	EmitEvent(guid []byte, seqNum uint64, ty types.Type, val values.Value) error
	// Events returns the events emitted so far, in emission order
	Events() []types.Event
}

type resourceEntry struct {
	tag    types.StructTag
	layout types.TypeLayout
	value  *values.GlobalValue
}

type accountCache struct {
	modules   map[types.Identifier][]byte
	resources map[string]*resourceEntry
}

func newAccountCache() *accountCache {
	return &accountCache{
		modules:   make(map[types.Identifier][]byte),
		resources: make(map[string]*resourceEntry),
	}
}

// TransactionDataCache is an in memory cache of the resources and modules
// touched by one session. It is not safe for concurrent use.
type TransactionDataCache struct {
	remote    resolver.MoveResolver
	converter TypeConverter

	accounts map[types.AccountAddress]*accountCache
	events   []types.Event
}

// New returns an empty cache backed by [remote]
func New(remote resolver.MoveResolver, converter TypeConverter) *TransactionDataCache {
	return &TransactionDataCache{
		remote:    remote,
		converter: converter,
		accounts:  make(map[types.AccountAddress]*accountCache),
	}
}

func (c *TransactionDataCache) account(addr types.AccountAddress) *accountCache {
	acct, ok := c.accounts[addr]
	if !ok {
		acct = newAccountCache()
		c.accounts[addr] = acct
	}
	return acct
}

func (c *TransactionDataCache) LoadResource(addr types.AccountAddress, ty types.Type) (*values.GlobalValue, error) {
	acct := c.account(addr)
	key := ty.Key()
	if entry, ok := acct.resources[key]; ok {
		return entry.value, nil
	}

	tag, err := c.converter.TypeToTypeTag(ty)
	if err != nil {
		return nil, err
	}
	if tag.Kind != types.TagStruct || tag.Struct == nil {
		return nil, types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("%s is not a resource type", ty))
	}
	layout, err := c.converter.TypeToTypeLayout(ty)
	if err != nil {
		return nil, err
	}

	blob, err := c.remote.GetResource(addr, *tag.Struct)
	if err != nil {
		return nil, types.StorageError(err).
			WithMessage(fmt.Sprintf("failed to load resource %s at %s", tag, addr))
	}

	gv := values.NoneGlobalValue()
	if blob != nil {
		v, err := values.Deserialize(blob, layout)
		if err != nil {
			return nil, types.NewError(types.StatusFailedToDeserializeResource).
				WithMessage(fmt.Sprintf("resource %s at %s", tag, addr)).
				WithCause(err)
		}
		gv = values.CachedGlobalValue(v)
	}

	acct.resources[key] = &resourceEntry{
		tag:    *tag.Struct,
		layout: layout,
		value:  gv,
	}
	return gv, nil
}

func (c *TransactionDataCache) LoadModule(id types.ModuleID) ([]byte, error) {
	if acct, ok := c.accounts[id.Address]; ok {
		if blob, ok := acct.modules[id.Name]; ok {
			return blob, nil
		}
	}
	blob, err := c.remote.GetModule(id)
	if err != nil {
		return nil, types.StorageError(err).WithMessage(fmt.Sprintf("failed to load module %s", id))
	}
	if blob == nil {
		return nil, types.NewError(types.StatusLinkerError).
			WithMessage(fmt.Sprintf("cannot find module %s", id))
	}
	return blob, nil
}

func (c *TransactionDataCache) PublishModule(id types.ModuleID, blob []byte) error {
	c.account(id.Address).modules[id.Name] = blob
	return nil
}

func (c *TransactionDataCache) ExistsModule(id types.ModuleID) (bool, error) {
	if acct, ok := c.accounts[id.Address]; ok {
		if _, ok := acct.modules[id.Name]; ok {
			return true, nil
		}
	}
	blob, err := c.remote.GetModule(id)
	if err != nil {
		return false, types.StorageError(err).WithMessage(fmt.Sprintf("failed to load module %s", id))
	}
	return blob != nil, nil
}

func (c *TransactionDataCache) EmitEvent(guid []byte, seqNum uint64, ty types.Type, val values.Value) error {
	tag, err := c.converter.TypeToTypeTag(ty)
	if err != nil {
		return err
	}
	layout, err := c.converter.TypeToTypeLayout(ty)
	if err != nil {
		return err
	}
	data, err := values.Serialize(val, layout)
	if err != nil {
		return types.NewError(types.StatusInternalTypeError).
			WithMessage(fmt.Sprintf("event of type %s", tag)).
			WithCause(err)
	}
	key := make([]byte, len(guid))
	copy(key, guid)
	c.events = append(c.events, types.Event{
		Key:            key,
		SequenceNumber: seqNum,
		Type:           tag,
		Data:           data,
	})
	return nil
}

func (c *TransactionDataCache) Events() []types.Event { return c.events }

// NumMutatedAccounts counts [sender] plus every other account with at least
// one mutated resource.
func (c *TransactionDataCache) NumMutatedAccounts(sender types.AccountAddress) uint64 {
	total := uint64(1)
	for addr, acct := range c.accounts {
		if addr == sender {
			continue
		}
		for _, entry := range acct.resources {
			if entry.value.IsMutated() {
				total++
				break
			}
		}
	}
	return total
}

// IntoEffects drains the cache into a change set and the ordered event log.
// The cache must not be used afterwards.
func (c *TransactionDataCache) IntoEffects() (*types.ChangeSet, []types.Event, error) {
	addrs := make([]types.AccountAddress, 0, len(c.accounts))
	for addr := range c.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })

	changeSet := types.NewChangeSet()
	for _, addr := range addrs {
		acct := c.accounts[addr]
		acs := types.NewAccountChangeSet()

		names := make([]types.Identifier, 0, len(acct.modules))
		for name := range acct.modules {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		for _, name := range names {
			if err := acs.AddModuleOp(name, types.Write(acct.modules[name])); err != nil {
				return nil, nil, types.NewError(types.StatusUnknownInvariantViolation).WithCause(err)
			}
		}

		keys := make([]string, 0, len(acct.resources))
		for key := range acct.resources {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entry := acct.resources[key]
			effect := entry.value.IntoEffect()
			var op types.Op
			switch effect.Kind {
			case values.EffectNone:
				continue
			case values.EffectDeleted:
				op = types.Delete()
			case values.EffectChanged:
				blob, err := values.Serialize(effect.Value, entry.layout)
				if err != nil {
					return nil, nil, types.NewError(types.StatusInternalTypeError).
						WithMessage(fmt.Sprintf("resource %s at %s", entry.tag, addr)).
						WithCause(err)
				}
				op = types.Write(blob)
			}
			if err := acs.AddResourceOp(entry.tag, op); err != nil {
				return nil, nil, types.NewError(types.StatusUnknownInvariantViolation).WithCause(err)
			}
		}

		if !acs.IsEmpty() {
			changeSet.PublishOrOverwriteAccountChangeSet(addr, acs)
		}
	}

	events := c.events
	c.accounts = nil
	c.events = nil
	return changeSet, events, nil
}
