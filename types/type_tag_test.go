// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeTagRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, str := range []string{
		"bool",
		"u8",
		"u64",
		"u128",
		"address",
		"signer",
		"vector<u8>",
		"vector<vector<address>>",
		"0x1::Coin::Coin",
		"0x1::Coin::Coin<u64>",
		"vector<0x1::Coin::Coin<u64, bool>>",
		"0xabc::Table::Table<0x1::Coin::Coin<u8>, vector<u64>>",
	} {
		tag, err := ParseTypeTag(str)
		require.NoError(err, str)
		require.Equal(str, tag.String())

		again, err := ParseTypeTag(tag.String())
		require.NoError(err, str)
		require.True(tag.Equal(again), str)
	}
}

func TestParseTypeTagSpacing(t *testing.T) {
	require := require.New(t)

	tag, err := ParseTypeTag(" vector< 0x1::Coin::Coin< u64 ,bool > > ")
	require.NoError(err)
	require.Equal("vector<0x1::Coin::Coin<u64, bool>>", tag.String())
}

func TestParseTypeTagErrors(t *testing.T) {
	for _, str := range []string{
		"",
		"u64>",
		"u64 u8",
		"vector<u64",
		"vector<>",
		"0x1::Coin",
		"0x1::Coin::",
		"0x1::1Coin::Coin",
		"0x1::Coin::Coin<u64",
		"0x1::Coin::Coin<u64,>",
		"zz::Coin::Coin",
		"unknown",
	} {
		_, err := ParseTypeTag(str)
		assert.Error(t, err, str)
	}
}

func TestParseStructTag(t *testing.T) {
	require := require.New(t)

	tag, err := ParseStructTag("0x1::Coin::Coin<u64>")
	require.NoError(err)
	require.Equal(MustParseAddress("0x1"), tag.Address)
	require.Equal(Identifier("Coin"), tag.Module)
	require.Equal(Identifier("Coin"), tag.Name)
	require.Equal([]TypeTag{U64Tag}, tag.TypeParams)
	require.Equal(NewModuleID(MustParseAddress("0x1"), "Coin"), tag.ModuleID())
	require.Equal("0x1::Coin::Coin<u64>", tag.String())

	_, err = ParseStructTag("u64")
	require.Error(err)
	_, err = ParseStructTag("vector<0x1::Coin::Coin>")
	require.Error(err)
}

func TestStructTagBytesRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, str := range []string{
		"0x1::Coin::Coin",
		"0x2::Pool::Pool<u8, vector<0x1::Coin::Coin<u128>>, signer>",
	} {
		tag, err := ParseStructTag(str)
		require.NoError(err)
		decoded, err := ParseStructTagBytes(tag.Bytes())
		require.NoError(err, str)
		require.Equal(tag, decoded)
		require.Equal(str, decoded.String())
	}

	// distinct tags get distinct keys
	a, err := ParseStructTag("0x1::Coin::Coin<u64>")
	require.NoError(err)
	b, err := ParseStructTag("0x1::Coin::Coin<u8>")
	require.NoError(err)
	require.NotEqual(a.Bytes(), b.Bytes())

	_, err = ParseStructTagBytes(append(a.Bytes(), 0))
	require.Error(err)
	_, err = ParseStructTagBytes(a.Bytes()[:len(a.Bytes())-1])
	require.Error(err)
}

func TestParseAddress(t *testing.T) {
	require := require.New(t)

	one, err := ParseAddress("0x1")
	require.NoError(err)
	var want AccountAddress
	want[AddressLen-1] = 1
	require.Equal(want, one)
	require.Equal("0x1", one.String())
	require.Equal("0x"+strings.Repeat("0", 2*AddressLen-1)+"1", one.Hex())

	for _, str := range []string{"1", "0x01", "0X1", one.Hex()} {
		addr, err := ParseAddress(str)
		require.NoError(err, str)
		require.Equal(one, addr, str)
	}

	zero, err := ParseAddress("0x0")
	require.NoError(err)
	require.Equal("0x0", zero.String())

	abc := MustParseAddress("0xabc")
	require.Equal("0xabc", abc.String())
	require.Equal(-1, one.Compare(abc))
	require.Equal(1, abc.Compare(one))
	require.Zero(abc.Compare(abc))

	for _, str := range []string{"", "0x", "0xzz", "0x" + strings.Repeat("1", 2*AddressLen+2)} {
		_, err := ParseAddress(str)
		require.Error(err, str)
	}
	require.Panics(func() { MustParseAddress("0xzz") })
}

func TestAddressText(t *testing.T) {
	require := require.New(t)

	addr := MustParseAddress("0x2a")
	text, err := addr.MarshalText()
	require.NoError(err)
	require.Equal(addr.Hex(), string(text))

	var decoded AccountAddress
	require.NoError(decoded.UnmarshalText([]byte("0x2a")))
	require.Equal(addr, decoded)
	require.Error(decoded.UnmarshalText([]byte("nope")))
}

func TestIdentifierIsValid(t *testing.T) {
	assert := assert.New(t)

	for _, id := range []Identifier{"a", "Coin", "coin_store", "A1", "_a", "__", "_1"} {
		assert.True(id.IsValid(), id)
	}
	for _, id := range []Identifier{"", "_", "1a", "a-b", "a b", "a::b", "é"} {
		assert.False(id.IsValid(), id)
	}
}

func TestParseModuleID(t *testing.T) {
	require := require.New(t)

	id, err := ParseModuleID("0x1::Table")
	require.NoError(err)
	require.Equal(NewModuleID(MustParseAddress("0x1"), "Table"), id)
	require.Equal("0x1::Table", id.String())

	for _, str := range []string{"0x1", "0x1::", "0x1::1Table", "0x1::Table::T", "zz::Table"} {
		_, err := ParseModuleID(str)
		require.Error(err, str)
	}

	a := NewModuleID(MustParseAddress("0x1"), "B")
	b := NewModuleID(MustParseAddress("0x2"), "A")
	c := NewModuleID(MustParseAddress("0x2"), "B")
	require.True(a.Less(b))
	require.True(b.Less(c))
	require.False(c.Less(a))
}
