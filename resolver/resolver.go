// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package resolver declares the read-only views of persisted state that a
// session consults on a cache miss.
package resolver

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ava-labs/resourcevm/types"
)

// ModuleResolver returns published module blobs. A nil slice with a nil
// error means the module does not exist.
type ModuleResolver interface {
	GetModule(id types.ModuleID) ([]byte, error)
}

// ResourceResolver returns stored resources. A nil slice with a nil error
// means the resource does not exist.
type ResourceResolver interface {
	GetResource(addr types.AccountAddress, tag types.StructTag) ([]byte, error)
}

// MoveResolver is the full remote view consulted by the data cache
type MoveResolver interface {
	ModuleResolver
	ResourceResolver
}

// TableHandleLen is the size of a table handle in bytes
const TableHandleLen = 16

// TableHandle identifies a table
type TableHandle [TableHandleLen]byte

// TableHandleFromU128 converts the in-VM representation of a handle
func TableHandleFromU128(u types.U128) TableHandle { return TableHandle(u.BigEndian()) }

// U128 returns the in-VM representation of the handle
func (h TableHandle) U128() types.U128 { return types.U128FromBigEndian(h) }

// Compare orders handles by their bytes
func (h TableHandle) Compare(o TableHandle) int {
	for i := range h {
		switch {
		case h[i] < o[i]:
			return -1
		case h[i] > o[i]:
			return 1
		}
	}
	return 0
}

func (h TableHandle) String() string { return "T-" + strings.ToUpper(hex.EncodeToString(h[:])) }

// ParseTableHandle is the inverse of TableHandle.String. The prefix is
// optional.
func ParseTableHandle(s string) (TableHandle, error) {
	var h TableHandle
	s = strings.TrimPrefix(s, "T-")
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid table handle %q: %w", s, err)
	}
	if len(b) != TableHandleLen {
		return h, fmt.Errorf("invalid table handle %q: expected %d bytes, found %d", s, TableHandleLen, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// TableOperation is a table operation charged through OperationCost
type TableOperation byte

const (
	TableNewHandle TableOperation = iota
	TableDestroy
	TableInsert
	TableBorrow
	TableLength
	TableRemove
	TableContains
)

func (o TableOperation) String() string {
	switch o {
	case TableNewHandle:
		return "new_handle"
	case TableDestroy:
		return "destroy"
	case TableInsert:
		return "insert"
	case TableBorrow:
		return "borrow"
	case TableLength:
		return "length"
	case TableRemove:
		return "remove"
	case TableContains:
		return "contains"
	default:
		return fmt.Sprintf("table_operation(%d)", byte(o))
	}
}

// TableResolver is the remote view of table contents
type TableResolver interface {
	// ResolveTableEntry returns the value stored under [key], or nil
	ResolveTableEntry(handle TableHandle, key []byte) ([]byte, error)
	// TableSize returns the number of entries in the table
	TableSize(handle TableHandle) (uint64, error)
	// OperationCost returns the gas charged for an operation moving the
	// given number of key and value bytes
	OperationCost(op TableOperation, keySize, valSize int) uint64
}
