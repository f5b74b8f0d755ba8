// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package values

import (
	"github.com/ava-labs/resourcevm/types"
)

type globalState byte

const (
	// no value, and none in storage
	globalNone globalState = iota
	// storage held a value that was moved out during the session
	globalDeleted
	// value moved in during the session with nothing in storage
	globalFresh
	// value loaded from storage, possibly mutated since
	globalCached
)

// EffectKind is the net result of a session on one storage slot
type EffectKind byte

const (
	EffectNone EffectKind = iota
	EffectDeleted
	EffectChanged
)

// Effect is what a GlobalValue contributes to the write set
type Effect struct {
	Kind  EffectKind
	Value Value
}

// GlobalValue tracks one storage slot during a session. It is absent,
// present and clean, or present and dirty or deleted, and every transition
// is driven by MoveTo, MoveFrom and writes through BorrowGlobal references.
type GlobalValue struct {
	state  globalState
	root   *cell
	status *status
}

// NoneGlobalValue returns a slot with no value in storage
func NoneGlobalValue() *GlobalValue { return &GlobalValue{state: globalNone} }

// CachedGlobalValue returns a clean slot holding [v] as read from storage
func CachedGlobalValue(v Value) *GlobalValue {
	return &GlobalValue{
		state:  globalCached,
		root:   &cell{v: v},
		status: &status{},
	}
}

// MoveTo publishes [v] into the slot
func (g *GlobalValue) MoveTo(v Value) error {
	switch g.state {
	case globalNone:
		g.state = globalFresh
		g.root = &cell{v: v}
		g.status = nil
	case globalDeleted:
		g.state = globalCached
		g.root = &cell{v: v}
		g.status = &status{dirty: true}
	default:
		return types.NewError(types.StatusResourceAlreadyExists)
	}
	return nil
}

// MoveFrom removes the value from the slot and returns it
func (g *GlobalValue) MoveFrom() (Value, error) {
	switch g.state {
	case globalFresh:
		v := g.root.v
		g.state = globalNone
		g.root = nil
		return v, nil
	case globalCached:
		v := g.root.v
		g.state = globalDeleted
		g.root = nil
		g.status = nil
		return v, nil
	default:
		return nil, types.NewError(types.StatusMissingData)
	}
}

// BorrowGlobal returns a reference to the value in the slot. Writes through
// the reference mark a cached value dirty.
func (g *GlobalValue) BorrowGlobal() (*Reference, error) {
	switch g.state {
	case globalFresh, globalCached:
		return &Reference{slot: g.root, status: g.status}, nil
	default:
		return nil, types.NewError(types.StatusMissingData)
	}
}

// Exists reports whether the slot currently holds a value
func (g *GlobalValue) Exists() bool { return g.state == globalFresh || g.state == globalCached }

// IsMutated reports whether the slot would contribute to the write set
func (g *GlobalValue) IsMutated() bool {
	switch g.state {
	case globalDeleted, globalFresh:
		return true
	case globalCached:
		return g.status.dirty
	default:
		return false
	}
}

// IntoEffect returns the net effect of the session on the slot
func (g *GlobalValue) IntoEffect() Effect {
	switch g.state {
	case globalDeleted:
		return Effect{Kind: EffectDeleted}
	case globalFresh:
		return Effect{Kind: EffectChanged, Value: g.root.v}
	case globalCached:
		if g.status.dirty {
			return Effect{Kind: EffectChanged, Value: g.root.v}
		}
		return Effect{Kind: EffectNone}
	default:
		return Effect{Kind: EffectNone}
	}
}
