// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
)

// AddressLen is the number of bytes in an account address
const AddressLen = 20

var (
	errEmptyAddress   = errors.New("empty address string")
	errAddressTooLong = errors.New("address is longer than 20 bytes")
)

// AccountAddress identifies an account. It shares its representation with
// the short IDs used across the node.
type AccountAddress ids.ShortID

// AddressFromShortID converts a node short ID into an account address
func AddressFromShortID(id ids.ShortID) AccountAddress { return AccountAddress(id) }

// ShortID returns the address as a node short ID
func (a AccountAddress) ShortID() ids.ShortID { return ids.ShortID(a) }

// Bytes returns a copy of the raw address bytes
func (a AccountAddress) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// Compare returns -1, 0 or 1 comparing [a] and [b] byte-wise
func (a AccountAddress) Compare(b AccountAddress) int { return bytes.Compare(a[:], b[:]) }

// Hex returns the full-width hex form, prefixed with 0x
func (a AccountAddress) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String returns the shortest hex form, e.g. 0x1
func (a AccountAddress) String() string {
	s := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}

// MarshalText implements encoding.TextMarshaler
func (a AccountAddress) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (a *AccountAddress) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// ParseAddress parses a hex address. The 0x prefix is optional and short
// forms are left-padded with zeros.
func ParseAddress(s string) (AccountAddress, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return AccountAddress{}, errEmptyAddress
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) > AddressLen {
		return AccountAddress{}, errAddressTooLong
	}
	var addr AccountAddress
	copy(addr[AddressLen-len(raw):], raw)
	return addr, nil
}

// MustParseAddress is ParseAddress for constants. It panics on malformed input.
func MustParseAddress(s string) AccountAddress {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}
