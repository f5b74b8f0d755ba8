// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

const (
	GenesisKey byte = iota
	TxnCounterKey
)

var (
	genesisKey                     = []byte{GenesisKey}
	txnCounterKey                  = []byte{TxnCounterKey}
	_             InitializedState = (*initializedState)(nil)
)

// InitializedState records the genesis bundle the state was created from
// and the number of transactions executed over it
type InitializedState interface {
	IsInitialized() (bool, error)
	// GenesisID returns the hash of the genesis bundle
	GenesisID() (ids.ID, error)
	SetInitialized(genesisID ids.ID) error

	// TxnCounter returns the number of transactions committed so far, 0 on a
	// fresh state
	TxnCounter() (uint64, error)
	SetTxnCounter(counter uint64) error
}

type initializedState struct {
	singletonDB database.Database
}

func NewInitializedState(db database.Database) InitializedState {
	return &initializedState{
		singletonDB: db,
	}
}

func (s *initializedState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(genesisKey)
}

func (s *initializedState) GenesisID() (ids.ID, error) {
	b, err := s.singletonDB.Get(genesisKey)
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(b)
}

func (s *initializedState) SetInitialized(genesisID ids.ID) error {
	return s.singletonDB.Put(genesisKey, genesisID[:])
}

func (s *initializedState) TxnCounter() (uint64, error) {
	counter, err := database.GetUInt64(s.singletonDB, txnCounterKey)
	if err == database.ErrNotFound {
		return 0, nil
	}
	return counter, err
}

func (s *initializedState) SetTxnCounter(counter uint64) error {
	return database.PutUInt64(s.singletonDB, txnCounterKey, counter)
}
