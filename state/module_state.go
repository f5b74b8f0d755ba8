// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
)

const (
	moduleCacheSize = 2048
)

var _ resolver.ModuleResolver = (*moduleState)(nil)

type moduleState struct {
	// caches published modules; a nil entry records a missing module
	moduleCache cache.Cacher
	moduleDB    database.Database
	metrics     *metrics
}

func newModuleState(db database.Database, m *metrics) *moduleState {
	return &moduleState{
		moduleCache: &cache.LRU{Size: moduleCacheSize},
		moduleDB:    db,
		metrics:     m,
	}
}

func moduleKey(id types.ModuleID) []byte {
	return append(id.Address.Bytes(), string(id.Name)...)
}

// GetModule returns the module [id], or nil if it was never published
func (s *moduleState) GetModule(id types.ModuleID) ([]byte, error) {
	s.metrics.reads.WithLabelValues(kindModule).Inc()
	key := string(moduleKey(id))
	if blob, ok := s.moduleCache.Get(key); ok {
		if blob == nil {
			return nil, nil
		}
		return blob.([]byte), nil
	}

	blob, err := s.moduleDB.Get([]byte(key))
	switch {
	case err == database.ErrNotFound:
		s.metrics.misses.WithLabelValues(kindModule).Inc()
		s.moduleCache.Put(key, nil)
		return nil, nil
	case err != nil:
		return nil, err
	}
	s.moduleCache.Put(key, blob)
	return blob, nil
}

func (s *moduleState) writeModule(id types.ModuleID, op types.Op) error {
	key := moduleKey(id)
	if op.Deletion {
		s.moduleCache.Put(string(key), nil)
		return s.moduleDB.Delete(key)
	}
	s.moduleCache.Put(string(key), op.Value)
	return s.moduleDB.Put(key, op.Value)
}

func (s *moduleState) ClearCache() {
	s.moduleCache.Flush()
}
