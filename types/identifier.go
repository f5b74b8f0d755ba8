// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"
	"strings"
)

// Identifier names a module, struct or function
type Identifier string

// IsValid reports whether [id] is a well formed identifier: a letter followed
// by letters, digits or underscores, or an underscore followed by at least one
// of those.
func (id Identifier) IsValid() bool {
	s := string(id)
	if s == "" {
		return false
	}
	first := s[0]
	switch {
	case isLetter(first):
	case first == '_':
		if len(s) == 1 {
			return false
		}
	default:
		return false
	}
	for i := 1; i < len(s); i++ {
		if c := s[i]; !isLetter(c) && !isDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

func (id Identifier) String() string { return string(id) }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

// ModuleID is the fully qualified name of a module
type ModuleID struct {
	Address AccountAddress `serialize:"true" json:"address"`
	Name    Identifier     `serialize:"true" json:"name"`
}

// NewModuleID returns the id of module [name] published under [addr]
func NewModuleID(addr AccountAddress, name Identifier) ModuleID {
	return ModuleID{Address: addr, Name: name}
}

// Compare orders module ids by address, then by name
func (m ModuleID) Compare(o ModuleID) int {
	if c := m.Address.Compare(o.Address); c != 0 {
		return c
	}
	return strings.Compare(string(m.Name), string(o.Name))
}

// Less reports whether [m] sorts before [o]
func (m ModuleID) Less(o ModuleID) bool { return m.Compare(o) < 0 }

func (m ModuleID) String() string { return fmt.Sprintf("%s::%s", m.Address, m.Name) }

// ParseModuleID parses the canonical 0xADDR::Name form
func ParseModuleID(s string) (ModuleID, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 2 {
		return ModuleID{}, fmt.Errorf("invalid module id %q", s)
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return ModuleID{}, err
	}
	name := Identifier(parts[1])
	if !name.IsValid() {
		return ModuleID{}, fmt.Errorf("invalid module name %q", parts[1])
	}
	return NewModuleID(addr, name), nil
}
