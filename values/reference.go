// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package values

import (
	"fmt"

	"github.com/ava-labs/resourcevm/types"
)

// status is shared by every reference derived from the same global value so
// that a write through any of them marks the value as dirty.
type status struct {
	dirty bool
}

func (s *status) markDirty() {
	if s != nil {
		s.dirty = true
	}
}

type slot interface {
	get() Value
	set(Value)
}

type cell struct {
	v Value
}

func (c *cell) get() Value  { return c.v }
func (c *cell) set(v Value) { c.v = v }

type fieldSlot struct {
	s *Struct
	i int
}

func (f fieldSlot) get() Value  { return f.s.Fields[f.i] }
func (f fieldSlot) set(v Value) { f.s.Fields[f.i] = v }

type elemSlot struct {
	v *Vector
	i int
}

func (e elemSlot) get() Value  { return e.v.Elems[e.i] }
func (e elemSlot) set(v Value) { e.v.Elems[e.i] = v }

// Reference denotes a location holding a value
type Reference struct {
	slot   slot
	status *status
}

func (r *Reference) String() string { return "&" + r.slot.get().String() }

// ReadRef returns a copy of the referenced value
func (r *Reference) ReadRef() Value { return Copy(r.slot.get()) }

// WriteRef overwrites the referenced value
func (r *Reference) WriteRef(v Value) {
	r.slot.set(v)
	r.status.markDirty()
}

// Mutate applies [f] to the referenced container in place
func (r *Reference) Mutate(f func(Value) error) error {
	if err := f(r.slot.get()); err != nil {
		return err
	}
	r.status.markDirty()
	return nil
}

// BorrowField returns a reference to field [i] of the referenced struct
func (r *Reference) BorrowField(i int) (*Reference, error) {
	s, ok := r.slot.get().(*Struct)
	if !ok {
		return nil, typeError("struct", r.slot.get())
	}
	if i < 0 || i >= len(s.Fields) {
		return nil, types.NewError(types.StatusIndexOutOfBounds).
			WithMessage(fmt.Sprintf("field %d of struct with %d fields", i, len(s.Fields)))
	}
	return &Reference{slot: fieldSlot{s: s, i: i}, status: r.status}, nil
}

// BorrowElem returns a reference to element [i] of the referenced vector
func (r *Reference) BorrowElem(i int) (*Reference, error) {
	v, ok := r.slot.get().(*Vector)
	if !ok {
		return nil, typeError("vector", r.slot.get())
	}
	if i < 0 || i >= len(v.Elems) {
		return nil, types.NewError(types.StatusIndexOutOfBounds).
			WithMessage(fmt.Sprintf("index %d of vector with %d elements", i, len(v.Elems)))
	}
	return &Reference{slot: elemSlot{v: v, i: i}, status: r.status}, nil
}

// NewReference returns a reference to [v] in a fresh location
func NewReference(v Value) *Reference { return &Reference{slot: &cell{v: v}} }

// SignerValue returns a signer for [addr]
func SignerValue(addr types.AccountAddress) Value { return Signer(addr) }

// SignerReference returns a &signer for [addr], backed by a fresh location
func SignerReference(addr types.AccountAddress) *Reference {
	return NewReference(Signer(addr))
}

// Locals are the indexed value slots of a call frame. The runtime uses them
// to pass values by reference and read back what the callee wrote.
type Locals struct {
	cells []*cell
}

// NewLocals returns [n] empty slots
func NewLocals(n int) *Locals {
	cells := make([]*cell, n)
	for i := range cells {
		cells[i] = &cell{}
	}
	return &Locals{cells: cells}
}

func (l *Locals) checkIndex(i int) error {
	if i < 0 || i >= len(l.cells) {
		return types.NewError(types.StatusIndexOutOfBounds).
			WithMessage(fmt.Sprintf("local %d of %d", i, len(l.cells)))
	}
	return nil
}

// StoreLoc stores [v] in slot [i]
func (l *Locals) StoreLoc(i int, v Value) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	l.cells[i].v = v
	return nil
}

// BorrowLoc returns a reference to slot [i]
func (l *Locals) BorrowLoc(i int) (*Reference, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	if l.cells[i].v == nil {
		return nil, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("borrow of unavailable local %d", i))
	}
	return &Reference{slot: l.cells[i]}, nil
}

// MoveLoc takes the value out of slot [i]
func (l *Locals) MoveLoc(i int) (Value, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	v := l.cells[i].v
	if v == nil {
		return nil, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("move of unavailable local %d", i))
	}
	l.cells[i].v = nil
	return v, nil
}
