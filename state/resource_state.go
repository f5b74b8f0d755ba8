// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
)

var _ resolver.ResourceResolver = (*resourceState)(nil)

type resourceState struct {
	resourceDB database.Database
	metrics    *metrics
}

func newResourceState(db database.Database, m *metrics) *resourceState {
	return &resourceState{resourceDB: db, metrics: m}
}

// resources of an account share the account's address as key prefix
func resourceKey(addr types.AccountAddress, tag types.StructTag) []byte {
	return append(addr.Bytes(), tag.Bytes()...)
}

// GetResource returns the resource [tag] stored under [addr], or nil
func (s *resourceState) GetResource(addr types.AccountAddress, tag types.StructTag) ([]byte, error) {
	s.metrics.reads.WithLabelValues(kindResource).Inc()
	b, err := s.resourceDB.Get(resourceKey(addr, tag))
	switch {
	case err == database.ErrNotFound:
		s.metrics.misses.WithLabelValues(kindResource).Inc()
		return nil, nil
	case err != nil:
		return nil, err
	}
	return b, nil
}

func (s *resourceState) writeResource(addr types.AccountAddress, tag types.StructTag, op types.Op) error {
	key := resourceKey(addr, tag)
	if op.Deletion {
		return s.resourceDB.Delete(key)
	}
	return s.resourceDB.Put(key, op.Value)
}
