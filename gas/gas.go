// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gas meters execution against a budget.
package gas

import (
	"fmt"

	"github.com/ava-labs/resourcevm/types"
)

// Status tracks the gas left to a session
type Status struct {
	budget    uint64
	remaining uint64
	unmetered bool
}

// NewStatus returns a meter with [budget] units
func NewStatus(budget uint64) *Status {
	return &Status{budget: budget, remaining: budget}
}

// Unmetered returns a meter that never runs out
func Unmetered() *Status { return &Status{unmetered: true} }

// Charge deducts [amount]. Running out leaves the meter empty.
func (s *Status) Charge(amount uint64) error {
	if s.unmetered {
		return nil
	}
	if amount > s.remaining {
		s.remaining = 0
		return types.NewError(types.StatusOutOfGas).
			WithMessage(fmt.Sprintf("charge of %d exceeds remaining gas", amount))
	}
	s.remaining -= amount
	return nil
}

// Remaining returns the units left
func (s *Status) Remaining() uint64 { return s.remaining }

// Used returns the units charged so far
func (s *Status) Used() uint64 { return s.budget - s.remaining }

// IsUnmetered reports whether charges are ignored
func (s *Status) IsUnmetered() bool { return s.unmetered }
