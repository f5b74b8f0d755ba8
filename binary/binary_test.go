// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/types"
)

var (
	testAddr = types.MustParseAddress("0x1")
	coinID   = types.NewModuleID(testAddr, "Coin")
)

func coinModule() *ModuleBuilder {
	b := NewModuleBuilder(coinID)
	coin := b.Struct("Coin", types.AbilityKey|types.AbilityStore, 0,
		FieldDefinition{Name: "value", Type: U64Token},
	)
	b.Function("value", Public, false, nil,
		[]SignatureToken{ReferenceToken(StructToken(coin))},
		[]SignatureToken{U64Token},
	)
	b.Function("mint", Script, false, nil,
		[]SignatureToken{ReferenceToken(SignerToken), U64Token},
		nil,
	)
	b.Function("helper", Private, false, nil, nil, nil)
	return b
}

func TestModuleRoundTrip(t *testing.T) {
	require := require.New(t)

	blob, err := coinModule().Bytes()
	require.NoError(err)

	m, err := DeserializeModule(blob)
	require.NoError(err)
	require.Equal(coinID, m.Self())
	require.Empty(m.ImmediateDependencies())

	def, ok := m.FunctionDefByName("mint")
	require.True(ok)
	require.Equal(Script, def.Visibility)

	again, err := SerializeModule(m)
	require.NoError(err)
	require.Equal(blob, again)
}

func TestDeserializeModuleRejectsGarbage(t *testing.T) {
	_, err := DeserializeModule([]byte{0, 0, 1, 2, 3})
	require.Equal(t, types.StatusCodeDeserializationError, types.StatusOf(err))
}

func TestDeserializeModuleChecksBounds(t *testing.T) {
	require := require.New(t)

	b := coinModule()
	m := b.Build()
	m.FunctionHandles[0].Parameters = []SignatureToken{StructToken(42)}
	blob, err := SerializeModule(m)
	require.NoError(err)

	_, err = DeserializeModule(blob)
	require.Equal(types.StatusIndexOutOfBounds, types.StatusOf(err))
}

func TestDeserializeModuleChecksTypeParameters(t *testing.T) {
	require := require.New(t)

	b := NewModuleBuilder(coinID)
	b.Function("f", Public, false, []uint8{0}, []SignatureToken{TypeParameterToken(1)}, nil)
	blob, err := b.Bytes()
	require.NoError(err)

	_, err = DeserializeModule(blob)
	require.Equal(types.StatusIndexOutOfBounds, types.StatusOf(err))
}

func TestImmediateDependencies(t *testing.T) {
	b := NewModuleBuilder(types.NewModuleID(testAddr, "Wallet"))
	b.FunctionRef(coinID, "value", nil, nil, nil)
	b.FunctionRef(coinID, "mint", nil, nil, nil)
	other := types.NewModuleID(testAddr, "Bank")
	b.StructRef(other, "Vault", 0, 0)

	deps := b.Build().ImmediateDependencies()
	require.Equal(t, []types.ModuleID{other, coinID}, deps)
}

func TestCompatibility(t *testing.T) {
	assert := assert.New(t)

	old := coinModule().Build()

	// adding functions and structs is compatible
	grown := coinModule()
	grown.Struct("Extra", 0, 0)
	grown.Function("burn", Public, false, nil, nil, nil)
	assert.True(CheckCompatibility(old, grown.Build()).IsFullyCompatible())

	// private functions may change freely
	noHelper := NewModuleBuilder(coinID)
	coin := noHelper.Struct("Coin", types.AbilityKey|types.AbilityStore, 0,
		FieldDefinition{Name: "value", Type: U64Token},
	)
	noHelper.Function("value", Public, false, nil,
		[]SignatureToken{ReferenceToken(StructToken(coin))},
		[]SignatureToken{U64Token},
	)
	noHelper.Function("mint", Script, false, nil,
		[]SignatureToken{ReferenceToken(SignerToken), U64Token},
		nil,
	)
	assert.True(CheckCompatibility(old, noHelper.Build()).IsFullyCompatible())

	// changing a field breaks layout only
	relaid := NewModuleBuilder(coinID)
	coin = relaid.Struct("Coin", types.AbilityKey|types.AbilityStore, 0,
		FieldDefinition{Name: "value", Type: U128Token},
	)
	relaid.Function("value", Public, false, nil,
		[]SignatureToken{ReferenceToken(StructToken(coin))},
		[]SignatureToken{U64Token},
	)
	relaid.Function("mint", Script, false, nil,
		[]SignatureToken{ReferenceToken(SignerToken), U64Token},
		nil,
	)
	c := CheckCompatibility(old, relaid.Build())
	assert.True(c.StructAndFunctionLinking)
	assert.False(c.StructLayout)
	assert.False(c.IsFullyCompatible())

	// removing a public function breaks linking
	removed := NewModuleBuilder(coinID)
	removed.Struct("Coin", types.AbilityKey|types.AbilityStore, 0,
		FieldDefinition{Name: "value", Type: U64Token},
	)
	c = CheckCompatibility(old, removed.Build())
	assert.False(c.StructAndFunctionLinking)
	assert.True(c.StructLayout)
}
