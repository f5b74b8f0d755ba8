// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists the output of sessions and serves it back to new
// sessions as their remote view.
package state

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/tables"
	"github.com/ava-labs/resourcevm/types"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	moduleStatePrefix    = []byte("module")
	resourceStatePrefix  = []byte("resource")
	tableStatePrefix     = []byte("table")
	tableSizePrefix      = []byte("tablesize")
	eventStatePrefix     = []byte("event")

	_ State = &state{}
)

// State is the persisted view consulted by sessions on a cache miss.
// Writes are staged until Commit.
type State interface {
	resolver.MoveResolver
	resolver.TableResolver
	InitializedState
	EventState

	// Apply stages the output of a successful session
	Apply(changes *types.ChangeSet, events []types.Event, tableChanges *tables.ChangeSet) error

	Commit() error
	Abort()
	Close() error
}

type state struct {
	InitializedState
	*moduleState
	*resourceState
	*tableState
	EventState

	baseDB  *versiondb.Database
	metrics *metrics
}

// NewState layers the state over [db]. Metrics are registered with [reg]
// when it is not nil.
func NewState(db database.Database, costs TableCosts, reg prometheus.Registerer) (State, error) {
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}

	// create a new baseDB
	baseDB := versiondb.New(db)

	return &state{
		InitializedState: NewInitializedState(prefixdb.New(singletonStatePrefix, baseDB)),
		moduleState:      newModuleState(prefixdb.New(moduleStatePrefix, baseDB), m),
		resourceState:    newResourceState(prefixdb.New(resourceStatePrefix, baseDB), m),
		tableState: newTableState(
			prefixdb.New(tableStatePrefix, baseDB),
			prefixdb.New(tableSizePrefix, baseDB),
			costs,
			m,
		),
		EventState: NewEventState(prefixdb.New(eventStatePrefix, baseDB)),
		baseDB:     baseDB,
		metrics:    m,
	}, nil
}

func (s *state) Apply(changes *types.ChangeSet, events []types.Event, tableChanges *tables.ChangeSet) error {
	if changes != nil {
		for _, addr := range changes.Accounts() {
			acct, _ := changes.Account(addr)
			for _, m := range acct.Modules() {
				id := types.NewModuleID(addr, m.Name)
				if err := s.writeModule(id, m.Op); err != nil {
					return fmt.Errorf("failed to write module %s: %w", id, err)
				}
			}
			for _, r := range acct.Resources() {
				if err := s.writeResource(addr, r.Tag, r.Op); err != nil {
					return fmt.Errorf("failed to write resource %s at %s: %w", r.Tag, addr, err)
				}
			}
		}
	}
	if err := s.PutEvents(events); err != nil {
		return err
	}
	if tableChanges != nil {
		if err := s.applyTables(tableChanges); err != nil {
			return err
		}
	}
	return nil
}

// Commit commits pending operations to baseDB
func (s *state) Commit() error {
	if err := s.baseDB.Commit(); err != nil {
		return err
	}
	s.metrics.commits.Inc()
	return nil
}

// Abort drops pending operations and every cached read
func (s *state) Abort() {
	s.baseDB.Abort()
	s.moduleState.ClearCache()
	s.metrics.aborts.Inc()
}

// Close closes the version layer. The database given to NewState stays open.
func (s *state) Close() error {
	return s.baseDB.Close()
}
