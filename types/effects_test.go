// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testAddr1 = MustParseAddress("0x1")
	testAddr2 = MustParseAddress("0x2")
	coinTag   = StructTag{Address: testAddr1, Module: "Coin", Name: "Coin"}
)

func TestAddOpsRejectDuplicates(t *testing.T) {
	require := require.New(t)

	cs := NewChangeSet()
	coinID := NewModuleID(testAddr1, "Coin")
	require.NoError(cs.AddModuleOp(coinID, Write([]byte{1})))
	require.Error(cs.AddModuleOp(coinID, Delete()))
	// the same name under another account is a different module
	require.NoError(cs.AddModuleOp(NewModuleID(testAddr2, "Coin"), Write([]byte{2})))

	require.NoError(cs.AddResourceOp(testAddr2, coinTag, Write([]byte{3})))
	require.Error(cs.AddResourceOp(testAddr2, coinTag, Write([]byte{4})))
	// type arguments are part of the resource key
	generic := coinTag
	generic.TypeParams = []TypeTag{U64Tag}
	require.NoError(cs.AddResourceOp(testAddr2, generic, Write([]byte{5})))

	acct, ok := cs.Account(testAddr2)
	require.True(ok)
	op, ok := acct.Resource(coinTag)
	require.True(ok)
	require.Equal(Write([]byte{3}), op, "the rejected write is not recorded")
	require.Len(acct.Resources(), 2)

	op, ok = acct.Module("Coin")
	require.True(ok)
	require.Equal([]byte{2}, op.Value)
	_, ok = acct.Module("Missing")
	require.False(ok)
}

func TestChangeSetOrdering(t *testing.T) {
	require := require.New(t)

	cs := NewChangeSet()
	require.Zero(cs.Len())
	require.NoError(cs.AddModuleOp(NewModuleID(testAddr2, "B"), Write(nil)))
	require.NoError(cs.AddModuleOp(NewModuleID(testAddr2, "A"), Write(nil)))
	require.NoError(cs.AddModuleOp(NewModuleID(testAddr1, "Z"), Write(nil)))

	require.Equal(2, cs.Len())
	require.Equal([]AccountAddress{testAddr1, testAddr2}, cs.Accounts())

	acct, ok := cs.Account(testAddr2)
	require.True(ok)
	mods := acct.Modules()
	require.Len(mods, 2)
	require.Equal(Identifier("A"), mods[0].Name)
	require.Equal(Identifier("B"), mods[1].Name)
	require.False(acct.IsEmpty())
	require.True(NewAccountChangeSet().IsEmpty())

	_, ok = cs.Account(MustParseAddress("0x3"))
	require.False(ok)
}

func TestSquashLaterWriteWins(t *testing.T) {
	require := require.New(t)

	earlier := NewChangeSet()
	require.NoError(earlier.AddResourceOp(testAddr1, coinTag, Write([]byte{1})))
	require.NoError(earlier.AddModuleOp(NewModuleID(testAddr1, "Coin"), Write([]byte{2})))

	later := NewChangeSet()
	require.NoError(later.AddResourceOp(testAddr1, coinTag, Delete()))
	require.NoError(later.AddResourceOp(testAddr2, coinTag, Write([]byte{3})))

	earlier.Squash(later)
	require.Equal([]AccountAddress{testAddr1, testAddr2}, earlier.Accounts())

	acct, ok := earlier.Account(testAddr1)
	require.True(ok)
	op, ok := acct.Resource(coinTag)
	require.True(ok)
	require.True(op.Deletion, "a later delete overrides an earlier write")
	require.Equal("delete", op.String())

	// writes the later set does not touch survive
	op, ok = acct.Module("Coin")
	require.True(ok)
	require.Equal(Write([]byte{2}), op)

	acct, ok = earlier.Account(testAddr2)
	require.True(ok)
	op, ok = acct.Resource(coinTag)
	require.True(ok)
	require.Equal([]byte{3}, op.Value)
	require.Equal("write(1 bytes)", op.String())

	// the later set is left as it was
	require.Equal(2, later.Len())
	acct, _ = later.Account(testAddr1)
	require.Len(acct.Resources(), 1)
	require.Empty(acct.Modules())
}

func TestSquashDeleteThenWrite(t *testing.T) {
	require := require.New(t)

	earlier := NewChangeSet()
	require.NoError(earlier.AddResourceOp(testAddr1, coinTag, Delete()))
	later := NewChangeSet()
	require.NoError(later.AddResourceOp(testAddr1, coinTag, Write([]byte{9})))

	earlier.Squash(later)
	acct, _ := earlier.Account(testAddr1)
	op, ok := acct.Resource(coinTag)
	require.True(ok)
	require.False(op.Deletion)
	require.Equal([]byte{9}, op.Value)
}
