// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tables stores user defined key/value tables for one session. Like
// resources, entries are fetched from the remote resolver on first touch
// and only leave the session through IntoChangeSet.
package tables

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/ava-labs/resourcevm/datacache"
	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// ExtensionName is the key of the table context in a session's extensions
const ExtensionName = "tables"

var (
	// Abort sub statuses raised by table operations
	AlreadyExists = uniqueSubStatusCode(0)
	NotFound      = uniqueSubStatusCode(1)
	NotEmpty      = uniqueSubStatusCode(2)
)

func uniqueSubStatusCode(logicalCode byte) uint64 {
	h := sha3.New256()
	_, _ = h.Write([]byte("Extensions::Table"))
	_, _ = h.Write([]byte{logicalCode})
	sum := h.Sum(nil)
	return uint64(binary.BigEndian.Uint16(sum[:2]))
}

func abortError(msg string, code uint64) error {
	return types.NewError(types.StatusAborted).WithMessage(msg).WithSubStatus(code)
}

func extensionError(msg string) *types.VMError {
	return types.NewError(types.StatusVMExtensionError).WithMessage(msg)
}

// Context is the per session table store
type Context struct {
	resolver resolver.TableResolver
	txnHash  types.U128

	// number of handles minted so far
	counter uint64

	newTables     map[resolver.TableHandle]struct{}
	removedTables map[resolver.TableHandle]struct{}
	tables        map[resolver.TableHandle]*Table
}

// NewContext returns an empty table store for the transaction [txnHash]
func NewContext(txnHash types.U128, r resolver.TableResolver) *Context {
	return &Context{
		resolver:      r,
		txnHash:       txnHash,
		newTables:     make(map[resolver.TableHandle]struct{}),
		removedTables: make(map[resolver.TableHandle]struct{}),
		tables:        make(map[resolver.TableHandle]*Table),
	}
}

// OperationCost forwards to the resolver's cost function
func (c *Context) OperationCost(op resolver.TableOperation, keySize, valSize int) uint64 {
	return c.resolver.OperationCost(op, keySize, valSize)
}

// nextHandle derives sha3-256(txn hash || counter), truncated to 16 bytes
func (c *Context) nextHandle() resolver.TableHandle {
	txnHash := c.txnHash.BigEndian()
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], c.counter)
	c.counter++

	h := sha3.New256()
	_, _ = h.Write(txnHash[:])
	_, _ = h.Write(counter[:])
	var handle resolver.TableHandle
	copy(handle[:], h.Sum(nil))
	return handle
}

// NewTableHandle mints a handle and registers an empty table under it
func (c *Context) NewTableHandle(conv datacache.TypeConverter, keyTy, valTy types.Type) (*Table, error) {
	handle := c.nextHandle()
	t, err := c.GetOrCreate(conv, handle, keyTy, valTy, true)
	if err != nil {
		return nil, err
	}
	c.newTables[handle] = struct{}{}
	return t, nil
}

// GetOrCreate returns the table [handle], loading its metadata on first
// touch. With [create] set the handle must not be known to the session and
// must not exist remotely.
func (c *Context) GetOrCreate(
	conv datacache.TypeConverter,
	handle resolver.TableHandle,
	keyTy types.Type,
	valTy types.Type,
	create bool,
) (*Table, error) {
	if t, ok := c.tables[handle]; ok {
		if create {
			return nil, abortError(fmt.Sprintf("table %s already exists", handle), AlreadyExists)
		}
		return t, nil
	}

	keyLayout, err := conv.TypeToTypeLayout(keyTy)
	if err != nil {
		return nil, extensionError("cannot determine key layout").WithCause(err)
	}
	valLayout, err := conv.TypeToTypeLayout(valTy)
	if err != nil {
		return nil, extensionError("cannot determine value layout").WithCause(err)
	}

	size, err := c.resolver.TableSize(handle)
	if err != nil {
		return nil, types.StorageError(err).WithMessage(fmt.Sprintf("size of table %s", handle))
	}
	if create {
		if size != 0 {
			return nil, abortError(fmt.Sprintf("table %s already exists", handle), AlreadyExists)
		}
	}

	t := &Table{
		ctx:       c,
		handle:    handle,
		keyLayout: keyLayout,
		valLayout: valLayout,
		content:   make(map[string]*values.GlobalValue),
		baseSize:  size,
	}
	c.tables[handle] = t
	return t, nil
}

// Table is one table touched by the session
type Table struct {
	ctx       *Context
	handle    resolver.TableHandle
	keyLayout types.TypeLayout
	valLayout types.TypeLayout

	// keyed by serialized key
	content   map[string]*values.GlobalValue
	baseSize  uint64
	sizeDelta int64
}

// Handle returns the table's handle
func (t *Table) Handle() resolver.TableHandle { return t.handle }

// globalValueIfExists returns the slot of [key] if it holds a value. The
// remote resolver is consulted at most once per key.
func (t *Table) globalValueIfExists(key values.Value) (*values.GlobalValue, string, int, int, error) {
	keyBytes, err := values.Serialize(key, t.keyLayout)
	if err != nil {
		return nil, "", 0, 0, extensionError("cannot serialize table key").WithCause(err)
	}
	k := string(keyBytes)
	valSize := 0

	gv, ok := t.content[k]
	if !ok {
		blob, err := t.ctx.resolver.ResolveTableEntry(t.handle, keyBytes)
		if err != nil {
			return nil, "", 0, 0, types.StorageError(err).
				WithMessage(fmt.Sprintf("entry of table %s", t.handle))
		}
		if blob == nil {
			gv = values.NoneGlobalValue()
		} else {
			valSize = len(blob)
			v, err := values.Deserialize(blob, t.valLayout)
			if err != nil {
				return nil, "", 0, 0, extensionError("cannot deserialize table value").WithCause(err)
			}
			gv = values.CachedGlobalValue(v)
		}
		t.content[k] = gv
	}

	if !gv.Exists() {
		return nil, k, len(keyBytes), valSize, nil
	}
	return gv, k, len(keyBytes), valSize, nil
}

// Insert adds [key] with [val]. Occupied keys abort with AlreadyExists.
func (t *Table) Insert(key, val values.Value) (int, int, error) {
	gv, k, keySize, _, err := t.globalValueIfExists(key)
	if err != nil {
		return 0, 0, err
	}
	if gv != nil {
		return 0, 0, abortError("table entry already occupied", AlreadyExists)
	}
	valBytes, err := values.Serialize(val, t.valLayout)
	if err != nil {
		return 0, 0, extensionError("cannot serialize table value").WithCause(err)
	}
	if err := t.content[k].MoveTo(val); err != nil {
		return 0, 0, err
	}
	t.sizeDelta++
	return keySize, len(valBytes), nil
}

// Borrow returns a reference to the value under [key]
func (t *Table) Borrow(key values.Value) (*values.Reference, int, int, error) {
	gv, _, keySize, valSize, err := t.globalValueIfExists(key)
	if err != nil {
		return nil, 0, 0, err
	}
	if gv == nil {
		return nil, 0, 0, abortError("undefined table entry", NotFound)
	}
	ref, err := gv.BorrowGlobal()
	if err != nil {
		return nil, 0, 0, err
	}
	return ref, keySize, valSize, nil
}

// Remove takes the value under [key] out of the table
func (t *Table) Remove(key values.Value) (values.Value, int, int, error) {
	gv, _, keySize, valSize, err := t.globalValueIfExists(key)
	if err != nil {
		return nil, 0, 0, err
	}
	if gv == nil {
		return nil, 0, 0, abortError("undefined table entry", NotFound)
	}
	v, err := gv.MoveFrom()
	if err != nil {
		return nil, 0, 0, err
	}
	t.sizeDelta--
	return v, keySize, valSize, nil
}

// Contains reports whether [key] holds a value
func (t *Table) Contains(key values.Value) (bool, int, int, error) {
	gv, _, keySize, valSize, err := t.globalValueIfExists(key)
	if err != nil {
		return false, 0, 0, err
	}
	return gv != nil, keySize, valSize, nil
}

// Length returns the number of entries
func (t *Table) Length() (uint64, error) {
	if t.sizeDelta < 0 && uint64(-t.sizeDelta) > t.baseSize {
		return 0, extensionError(fmt.Sprintf("inconsistent size of table %s: %d%+d", t.handle, t.baseSize, t.sizeDelta))
	}
	return uint64(int64(t.baseSize) + t.sizeDelta), nil
}

// DestroyEmpty removes the table, which must have no entries
func (t *Table) DestroyEmpty() error {
	n, err := t.Length()
	if err != nil {
		return err
	}
	if n > 0 {
		return abortError("table is not empty and cannot be destroyed", NotEmpty)
	}
	if _, ok := t.ctx.removedTables[t.handle]; ok {
		return types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("table %s destroyed twice", t.handle))
	}
	t.ctx.removedTables[t.handle] = struct{}{}
	return nil
}

// EntryChange is the net change of one key
type EntryChange struct {
	Key []byte
	Op  types.Op
}

// TableChange is the net change of one table
type TableChange struct {
	Handle    resolver.TableHandle
	Entries   []EntryChange
	BaseSize  uint64
	SizeDelta int64
}

// ChangeSet is the table output of a session. Destroyed tables appear only
// in RemovedTables.
type ChangeSet struct {
	NewTables     []resolver.TableHandle
	RemovedTables []resolver.TableHandle
	Changes       []TableChange
}

// IsEmpty reports whether the change set carries no change at all
func (c *ChangeSet) IsEmpty() bool {
	return len(c.NewTables) == 0 && len(c.RemovedTables) == 0 && len(c.Changes) == 0
}

func sortedHandles(set map[resolver.TableHandle]struct{}, skip map[resolver.TableHandle]struct{}) []resolver.TableHandle {
	handles := make([]resolver.TableHandle, 0, len(set))
	for h := range set {
		if _, ok := skip[h]; ok {
			continue
		}
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Compare(handles[j]) < 0 })
	return handles
}

// IntoChangeSet drains the store. It must not be used afterwards.
func (c *Context) IntoChangeSet() (*ChangeSet, error) {
	cs := &ChangeSet{
		NewTables:     sortedHandles(c.newTables, c.removedTables),
		RemovedTables: sortedHandles(c.removedTables, nil),
	}

	touched := make(map[resolver.TableHandle]struct{}, len(c.tables))
	for h := range c.tables {
		touched[h] = struct{}{}
	}
	for _, handle := range sortedHandles(touched, c.removedTables) {
		t := c.tables[handle]
		keys := make([]string, 0, len(t.content))
		for k := range t.content {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var entries []EntryChange
		for _, k := range keys {
			effect := t.content[k].IntoEffect()
			switch effect.Kind {
			case values.EffectDeleted:
				entries = append(entries, EntryChange{Key: []byte(k), Op: types.Delete()})
			case values.EffectChanged:
				b, err := values.Serialize(effect.Value, t.valLayout)
				if err != nil {
					return nil, extensionError("cannot serialize table value").WithCause(err)
				}
				entries = append(entries, EntryChange{Key: []byte(k), Op: types.Write(b)})
			}
		}
		if len(entries) == 0 && t.sizeDelta == 0 {
			continue
		}
		cs.Changes = append(cs.Changes, TableChange{
			Handle:    handle,
			Entries:   entries,
			BaseSize:  t.baseSize,
			SizeDelta: t.sizeDelta,
		})
	}

	c.tables = nil
	c.newTables = nil
	c.removedTables = nil
	return cs, nil
}
