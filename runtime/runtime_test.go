// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/loader"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

var (
	addr1 = types.MustParseAddress("0x1")
	addr2 = types.MustParseAddress("0x2")

	idA = types.NewModuleID(addr1, "A")
	idB = types.NewModuleID(addr1, "B")
	idM = types.NewModuleID(addr1, "M")
)

type memResolver struct {
	modules map[types.ModuleID][]byte
}

func newMemResolver() *memResolver {
	return &memResolver{modules: make(map[types.ModuleID][]byte)}
}

func (r *memResolver) GetModule(id types.ModuleID) ([]byte, error) {
	return r.modules[id], nil
}

func (r *memResolver) GetResource(types.AccountAddress, types.StructTag) ([]byte, error) {
	return nil, nil
}

// stubInterpreter records its calls and returns a fixed result
type stubInterpreter struct {
	calls   int
	args    []values.Value
	returns []values.Value
}

func (s *stubInterpreter) Entrypoint(
	_ *loader.Function, _ []types.Type, args []values.Value, _ *natives.Context, _ *gas.Status,
) ([]values.Value, error) {
	s.calls++
	s.args = args
	return s.returns, nil
}

func moduleA() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(idA)
	b.Struct("R", types.AbilityKey, 0, binary.FieldDefinition{Name: "n", Type: binary.U64Token})
	b.Function("get", binary.Public, false, nil, nil, []binary.SignatureToken{binary.U64Token})
	return b
}

func moduleB() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(idB)
	r := b.StructRef(idA, "R", types.AbilityKey, 0)
	b.Struct("Wrapper", types.AbilityKey, 0, binary.FieldDefinition{Name: "inner", Type: binary.StructToken(r)})
	b.FunctionRef(idA, "get", nil, nil, []binary.SignatureToken{binary.U64Token})
	return b
}

// moduleM declares the entry points used by the execution tests
func moduleM() *binary.ModuleBuilder {
	b := binary.NewModuleBuilder(idM)
	b.Function("two_signers", binary.Script, false, nil,
		[]binary.SignatureToken{binary.SignerToken, binary.ReferenceToken(binary.SignerToken), binary.U64Token}, nil)
	b.Function("returns_value", binary.Script, false, nil, nil, []binary.SignatureToken{binary.U64Token})
	b.Function("add", binary.Public, true, nil,
		[]binary.SignatureToken{binary.U64Token, binary.U64Token}, []binary.SignatureToken{binary.U64Token})
	b.Function("bump", binary.Public, true, nil,
		[]binary.SignatureToken{binary.MutableReferenceToken(binary.U64Token), binary.ReferenceToken(binary.U64Token)}, nil)
	b.Function("identity", binary.Public, false, []uint8{0},
		[]binary.SignatureToken{binary.TypeParameterToken(0)}, []binary.SignatureToken{binary.TypeParameterToken(0)})
	return b
}

func mNatives() *natives.Table {
	entry := func(name types.Identifier, f natives.Function) natives.Entry {
		return natives.Entry{Address: addr1, Module: "M", Function: name, Native: f}
	}
	return natives.NewTable(
		entry("add", func(_ *natives.Context, _ []types.Type, args []values.Value) (natives.Result, error) {
			return natives.Ok(1, args[0].(values.U64)+args[1].(values.U64)), nil
		}),
		entry("bump", func(_ *natives.Context, _ []types.Type, args []values.Value) (natives.Result, error) {
			by := args[1].(*values.Reference).ReadRef().(values.U64)
			target := args[0].(*values.Reference)
			target.WriteRef(target.ReadRef().(values.U64) + by)
			return natives.Ok(1), nil
		}),
	)
}

func mustBytes(t *testing.T, b *binary.ModuleBuilder) []byte {
	blob, err := b.Bytes()
	require.NoError(t, err)
	return blob
}

func u64Arg(t *testing.T, v uint64) []byte {
	b, err := values.Serialize(values.U64(v), types.U64Layout)
	require.NoError(t, err)
	return b
}

func signerArg(t *testing.T, addr types.AccountAddress) []byte {
	b, err := values.Serialize(values.SignerValue(addr), types.SignerLayout)
	require.NoError(t, err)
	return b
}

func publishedModules(t *testing.T, s *Session) []types.ModuleOp {
	changes, _, err := s.Finish()
	require.NoError(t, err)
	acct, ok := changes.Account(addr1)
	if !ok {
		return nil
	}
	return acct.Modules()
}

func TestPublishBundleInEitherOrder(t *testing.T) {
	require := require.New(t)

	vm := New(natives.NewTable(), Config{})
	a, b := mustBytes(t, moduleA()), mustBytes(t, moduleB())

	for _, bundle := range [][][]byte{{a, b}, {b, a}} {
		s := vm.NewSession(newMemResolver())
		require.NoError(s.PublishModuleBundle(bundle, addr1, gas.Unmetered()))
		mods := publishedModules(t, s)
		require.Len(mods, 2)
		require.Equal(types.Identifier("A"), mods[0].Name)
		require.Equal(types.Identifier("B"), mods[1].Name)
	}
}

func TestPublishRejectsAddressMismatch(t *testing.T) {
	require := require.New(t)

	vm := New(natives.NewTable(), Config{})
	s := vm.NewSession(newMemResolver())
	foreign := binary.NewModuleBuilder(types.NewModuleID(addr2, "A"))
	foreign.Function("f", binary.Public, false, nil, nil, nil)

	err := s.PublishModuleBundle([][]byte{mustBytes(t, moduleA()), mustBytes(t, foreign)}, addr1, gas.Unmetered())
	require.Equal(types.StatusModuleAddressDoesNotMatchSender, types.StatusOf(err))
	require.Empty(publishedModules(t, s))
}

func TestPublishRejectsDuplicates(t *testing.T) {
	vm := New(natives.NewTable(), Config{})
	s := vm.NewSession(newMemResolver())
	a := mustBytes(t, moduleA())

	err := s.PublishModuleBundle([][]byte{a, a}, addr1, gas.Unmetered())
	require.Equal(t, types.StatusDuplicateModuleName, types.StatusOf(err))
	require.Empty(t, publishedModules(t, s))
}

func TestPublishUpdateCompatibility(t *testing.T) {
	assert := assert.New(t)

	remote := newMemResolver()
	remote.modules[idA] = mustBytes(t, moduleA())
	vm := New(natives.NewTable(), Config{})

	// adding a function keeps every existing caller linked
	extended := moduleA()
	extended.Function("more", binary.Public, false, nil, nil, nil)
	s := vm.NewSession(remote)
	assert.NoError(s.PublishModule(mustBytes(t, extended), addr1, gas.Unmetered()))

	// dropping a public function does not
	shrunk := binary.NewModuleBuilder(idA)
	shrunk.Struct("R", types.AbilityKey, 0, binary.FieldDefinition{Name: "n", Type: binary.U64Token})
	s = vm.NewSession(remote)
	err := s.PublishModule(mustBytes(t, shrunk), addr1, gas.Unmetered())
	assert.Equal(types.StatusBackwardIncompatibleModuleUpdate, types.StatusOf(err))
	assert.Empty(publishedModules(t, s))
}

func TestPublishRejectsGarbageAndMissingDependencies(t *testing.T) {
	assert := assert.New(t)

	vm := New(natives.NewTable(), Config{})
	s := vm.NewSession(newMemResolver())
	err := s.PublishModuleBundle([][]byte{mustBytes(t, moduleA()), {0xff}}, addr1, gas.Unmetered())
	assert.Equal(types.StatusCodeDeserializationError, types.StatusOf(err))

	err = s.PublishModule(mustBytes(t, moduleB()), addr1, gas.Unmetered())
	assert.Equal(types.StatusMissingDependency, types.StatusOf(err))
	assert.Empty(publishedModules(t, s))
}

func TestPublishChargesPerByte(t *testing.T) {
	require := require.New(t)

	vm := New(natives.NewTable(), Config{})
	a, b := mustBytes(t, moduleA()), mustBytes(t, moduleB())
	size := uint64(len(a) + len(b))

	meter := gas.NewStatus(size)
	s := vm.NewSession(newMemResolver())
	require.NoError(s.PublishModuleBundle([][]byte{a, b}, addr1, meter))
	require.Equal(size, meter.Used())
	require.Zero(meter.Remaining())

	// one byte short fails on the last module and stages nothing
	meter = gas.NewStatus(size - 1)
	s = vm.NewSession(newMemResolver())
	err := s.PublishModuleBundle([][]byte{a, b}, addr1, meter)
	require.Equal(types.StatusOutOfGas, types.StatusOf(err))
	require.Empty(publishedModules(t, s))

	meter = gas.NewStatus(uint64(len(a)) - 1)
	err = vm.NewSession(newMemResolver()).PublishModule(a, addr1, meter)
	require.Equal(types.StatusOutOfGas, types.StatusOf(err))
}

func TestSignerCountMismatchStopsBeforeExecution(t *testing.T) {
	require := require.New(t)

	interp := &stubInterpreter{}
	vm := New(mNatives(), Config{Interpreter: interp})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	err := s.ExecuteScriptFunction(idM, "two_signers", nil, [][]byte{u64Arg(t, 1)}, []types.AccountAddress{addr1}, gas.Unmetered())
	require.Equal(types.StatusNumberOfSignerArgumentsMismatch, types.StatusOf(err))
	require.Zero(interp.calls)

	err = s.ExecuteScriptFunction(idM, "two_signers", nil, [][]byte{u64Arg(t, 1)}, []types.AccountAddress{addr1, addr2}, gas.Unmetered())
	require.NoError(err)
	require.Equal(1, interp.calls)
	require.Len(interp.args, 3)
	require.Equal(values.SignerValue(addr1), interp.args[0])
	ref, ok := interp.args[1].(*values.Reference)
	require.True(ok)
	require.Equal(values.SignerValue(addr2), ref.ReadRef())
	require.Equal(values.U64(1), interp.args[2])
}

func TestScriptSignerConvention(t *testing.T) {
	require := require.New(t)

	interp := &stubInterpreter{}
	vm := New(natives.NewTable(), Config{Interpreter: interp})
	s := vm.NewSession(newMemResolver())

	script, err := binary.SerializeScript(&binary.CompiledScript{
		Parameters: []binary.SignatureToken{binary.SignerToken, binary.SignerToken},
	})
	require.NoError(err)

	err = s.ExecuteScript(script, nil, nil, []types.AccountAddress{addr1}, gas.Unmetered())
	require.Equal(types.StatusNumberOfSignerArgumentsMismatch, types.StatusOf(err))
	require.Zero(interp.calls)

	require.NoError(s.ExecuteScript(script, nil, nil, []types.AccountAddress{addr1, addr2}, gas.Unmetered()))

	// a script returning values violates an invariant
	interp.returns = []values.Value{values.U64(1)}
	err = s.ExecuteScript(script, nil, nil, []types.AccountAddress{addr1, addr2}, gas.Unmetered())
	require.Equal(types.StatusUnknownInvariantViolation, types.StatusOf(err))
}

func TestEntryPointReturnsAreInvariantViolations(t *testing.T) {
	require := require.New(t)

	interp := &stubInterpreter{returns: []values.Value{values.U64(1)}}
	vm := New(mNatives(), Config{Interpreter: interp})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	err := s.ExecuteScriptFunction(idM, "returns_value", nil, nil, nil, gas.Unmetered())
	require.Equal(types.StatusUnknownInvariantViolation, types.StatusOf(err))

	// the declared and actual number of returns differ
	interp.returns = []values.Value{values.U64(1), values.U64(2)}
	_, err = s.ExecuteFunction(idM, "returns_value", nil, nil, gas.Unmetered())
	require.Equal(types.StatusUnknownInvariantViolation, types.StatusOf(err))

	// a value not matching its declared type cannot be serialized
	interp.returns = []values.Value{values.Bool(true)}
	_, err = s.ExecuteFunction(idM, "returns_value", nil, nil, gas.Unmetered())
	require.Equal(types.StatusInternalTypeError, types.StatusOf(err))

	_, err = s.ExecuteFunction(idM, "get", nil, nil, gas.Unmetered())
	require.Equal(types.StatusLookupFailed, types.StatusOf(err))
}

func TestExecuteNativeFunction(t *testing.T) {
	require := require.New(t)

	vm := New(mNatives(), Config{})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	meter := gas.NewStatus(10)
	out, err := s.ExecuteFunction(idM, "add", nil, [][]byte{u64Arg(t, 40), u64Arg(t, 2)}, meter)
	require.NoError(err)
	require.Equal([][]byte{u64Arg(t, 42)}, out)
	require.EqualValues(9, meter.Remaining())

	_, err = s.ExecuteFunction(idM, "add", nil, [][]byte{u64Arg(t, 40)}, meter)
	require.Equal(types.StatusNumberOfArgumentsMismatch, types.StatusOf(err))

	_, err = s.ExecuteFunction(idM, "add", nil, [][]byte{u64Arg(t, 40), {1, 2}}, meter)
	require.Equal(types.StatusFailedToDeserializeArgument, types.StatusOf(err))

	// script visibility is required for script functions
	err = s.ExecuteScriptFunction(idM, "add", nil, nil, nil, meter)
	require.Equal(types.StatusExecuteScriptFunctionCalledOnNonScriptVisibleFunction, types.StatusOf(err))
}

func TestExecuteFunctionTypeArguments(t *testing.T) {
	require := require.New(t)

	interp := &stubInterpreter{returns: []values.Value{values.ByteVector([]byte{7})}}
	vm := New(mNatives(), Config{Interpreter: interp})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	arg, err := values.Serialize(values.ByteVector([]byte{9}), types.VectorLayout(types.U8Layout))
	require.NoError(err)
	out, err := s.ExecuteFunction(idM, "identity", []types.TypeTag{types.VectorTag(types.U8Tag)}, [][]byte{arg}, gas.Unmetered())
	require.NoError(err)
	require.Equal([]values.Value{values.ByteVector([]byte{9})}, interp.args)
	want, err := values.Serialize(values.ByteVector([]byte{7}), types.VectorLayout(types.U8Layout))
	require.NoError(err)
	require.Equal([][]byte{want}, out)

	_, err = s.ExecuteFunction(idM, "identity", nil, [][]byte{arg}, gas.Unmetered())
	require.Equal(types.StatusNumberOfTypeArgumentsMismatch, types.StatusOf(err))
}

func TestExecuteFunctionForEffects(t *testing.T) {
	require := require.New(t)

	vm := New(mNatives(), Config{})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	rets, mutated, err := s.ExecuteFunctionForEffects(idM, "bump", nil, [][]byte{u64Arg(t, 10), u64Arg(t, 5)}, gas.Unmetered())
	require.NoError(err)
	require.Empty(rets)
	require.Equal([]MutatedReference{{Index: 0, Value: u64Arg(t, 15)}}, mutated)

	_, _, err = s.ExecuteFunctionForEffects(idM, "bump", nil, [][]byte{u64Arg(t, 10)}, gas.Unmetered())
	require.Equal(types.StatusNumberOfArgumentsMismatch, types.StatusOf(err))
}

func TestSignerReferenceArgument(t *testing.T) {
	require := require.New(t)

	interp := &stubInterpreter{}
	vm := New(mNatives(), Config{Interpreter: interp})
	remote := newMemResolver()
	remote.modules[idM] = mustBytes(t, moduleM())
	s := vm.NewSession(remote)

	// without senders every argument is passed explicitly, including a
	// signer payload for the &signer parameter
	_, err := s.ExecuteFunction(idM, "two_signers", nil,
		[][]byte{signerArg(t, addr1), signerArg(t, addr2), u64Arg(t, 3)}, gas.Unmetered())
	require.NoError(err)
	ref, ok := interp.args[1].(*values.Reference)
	require.True(ok)
	require.Equal(values.SignerValue(addr2), ref.ReadRef())

	_, err = s.ExecuteFunction(idM, "two_signers", nil,
		[][]byte{signerArg(t, addr1), {1}, u64Arg(t, 3)}, gas.Unmetered())
	require.Equal(types.StatusFailedToDeserializeArgument, types.StatusOf(err))
}
