// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/tables"
)

var (
	errNegativeTableSize = errors.New("negative table size")
	errInvalidTableSize  = errors.New("invalid table size encoding")

	_ resolver.TableResolver = (*tableState)(nil)
)

// TableCosts is the gas schedule of table operations. An operation costs
// its base cost plus PerByte for every key and value byte it moves.
type TableCosts struct {
	NewHandle uint64 `json:"newHandle"`
	Destroy   uint64 `json:"destroy"`
	Insert    uint64 `json:"insert"`
	Borrow    uint64 `json:"borrow"`
	Length    uint64 `json:"length"`
	Remove    uint64 `json:"remove"`
	Contains  uint64 `json:"contains"`
	PerByte   uint64 `json:"perByte"`
}

// DefaultTableCosts is the schedule used unless configured otherwise
var DefaultTableCosts = TableCosts{
	NewHandle: 100,
	Destroy:   100,
	Insert:    50,
	Borrow:    20,
	Length:    10,
	Remove:    50,
	Contains:  20,
	PerByte:   1,
}

func (c TableCosts) base(op resolver.TableOperation) uint64 {
	switch op {
	case resolver.TableNewHandle:
		return c.NewHandle
	case resolver.TableDestroy:
		return c.Destroy
	case resolver.TableInsert:
		return c.Insert
	case resolver.TableBorrow:
		return c.Borrow
	case resolver.TableLength:
		return c.Length
	case resolver.TableRemove:
		return c.Remove
	case resolver.TableContains:
		return c.Contains
	default:
		return 0
	}
}

type tableState struct {
	entryDB database.Database
	sizeDB  database.Database
	costs   TableCosts
	metrics *metrics
}

func newTableState(entryDB, sizeDB database.Database, costs TableCosts, m *metrics) *tableState {
	return &tableState{
		entryDB: entryDB,
		sizeDB:  sizeDB,
		costs:   costs,
		metrics: m,
	}
}

// entries of a table share the table's handle as key prefix
func entryKey(handle resolver.TableHandle, key []byte) []byte {
	k := make([]byte, 0, resolver.TableHandleLen+len(key))
	k = append(k, handle[:]...)
	return append(k, key...)
}

func (s *tableState) ResolveTableEntry(handle resolver.TableHandle, key []byte) ([]byte, error) {
	s.metrics.reads.WithLabelValues(kindTableEntry).Inc()
	b, err := s.entryDB.Get(entryKey(handle, key))
	switch {
	case err == database.ErrNotFound:
		s.metrics.misses.WithLabelValues(kindTableEntry).Inc()
		return nil, nil
	case err != nil:
		return nil, err
	}
	return b, nil
}

// TableSize returns 0 for tables that do not exist
func (s *tableState) TableSize(handle resolver.TableHandle) (uint64, error) {
	b, err := s.sizeDB.Get(handle[:])
	switch {
	case err == database.ErrNotFound:
		return 0, nil
	case err != nil:
		return 0, err
	}
	if len(b) != wrappers.LongLen {
		return 0, errInvalidTableSize
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *tableState) OperationCost(op resolver.TableOperation, keySize, valSize int) uint64 {
	return s.costs.base(op) + s.costs.PerByte*uint64(keySize+valSize)
}

func (s *tableState) putSize(handle resolver.TableHandle, size uint64) error {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, size)
	return s.sizeDB.Put(handle[:], b)
}

func (s *tableState) applyTables(cs *tables.ChangeSet) error {
	for _, handle := range cs.NewTables {
		if err := s.putSize(handle, 0); err != nil {
			return err
		}
	}
	for _, change := range cs.Changes {
		for _, entry := range change.Entries {
			key := entryKey(change.Handle, entry.Key)
			var err error
			if entry.Op.Deletion {
				err = s.entryDB.Delete(key)
			} else {
				err = s.entryDB.Put(key, entry.Op.Value)
			}
			if err != nil {
				return fmt.Errorf("failed to write entry of table %s: %w", change.Handle, err)
			}
		}
		size := int64(change.BaseSize) + change.SizeDelta
		if size < 0 {
			return fmt.Errorf("%w: table %s", errNegativeTableSize, change.Handle)
		}
		if err := s.putSize(change.Handle, uint64(size)); err != nil {
			return err
		}
	}
	for _, handle := range cs.RemovedTables {
		if err := s.removeTable(handle); err != nil {
			return fmt.Errorf("failed to remove table %s: %w", handle, err)
		}
	}
	return nil
}

// removeTable deletes every entry of [handle] along with its size
func (s *tableState) removeTable(handle resolver.TableHandle) error {
	it := s.entryDB.NewIteratorWithPrefix(handle[:])
	var keys [][]byte
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.entryDB.Delete(key); err != nil {
			return err
		}
	}
	return s.sizeDB.Delete(handle[:])
}
