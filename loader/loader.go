// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package loader turns published blobs into runtime modules, functions and
// types, and verifies bundles of modules before they are published.
package loader

import (
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/datacache"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/types"
)

const (
	// DefaultCacheSize is the number of modules kept by default
	DefaultCacheSize = 1024

	scriptFunctionName types.Identifier = "main"
)

var _ datacache.TypeConverter = (*Loader)(nil)

// ModuleStore is where the loader reads module blobs from. Staged modules
// of the current session must be visible through it.
type ModuleStore interface {
	LoadModule(id types.ModuleID) ([]byte, error)
	ExistsModule(id types.ModuleID) (bool, error)
}

// Function is a loaded function, ready to be called
type Function struct {
	// Module is unset for scripts
	Module     types.ModuleID
	Name       types.Identifier
	Visibility binary.Visibility
	IsScript   bool
	TypeParams []uint8
	Parameters []types.Type
	Return     []types.Type
	// Native is set for native functions
	Native natives.Function
	Code   []byte
}

// IsNative reports whether the function is implemented natively
func (f *Function) IsNative() bool { return f.Native != nil }

// Location returns the code location errors raised by [f] belong to
func (f *Function) Location() types.Location {
	if f.IsScript {
		return types.ScriptLocation
	}
	return types.ModuleLocation(f.Module)
}

func (f *Function) String() string {
	if f.IsScript {
		return "script"
	}
	return fmt.Sprintf("%s::%s", f.Module, f.Name)
}

// Module is a loaded module
type Module struct {
	Compiled  *binary.CompiledModule
	structs   map[types.Identifier]*types.StructType
	functions map[types.Identifier]*Function
}

// ID returns the module's id
func (m *Module) ID() types.ModuleID { return m.Compiled.Self() }

// Struct returns the struct type [name] defined by the module
func (m *Module) Struct(name types.Identifier) (*types.StructType, bool) {
	s, ok := m.structs[name]
	return s, ok
}

// Function returns the function [name] defined by the module
func (m *Module) Function(name types.Identifier) (*Function, bool) {
	f, ok := m.functions[name]
	return f, ok
}

// Loader resolves code. Modules are cached by the hash of their blob, so an
// upgraded module is loaded afresh while unchanged modules are shared
// across sessions.
type Loader struct {
	natives *natives.Table

	compiled cache.Cacher
	modules  cache.Cacher
	scripts  cache.Cacher
}

// New returns a loader binding native functions from [nativeTable]
func New(nativeTable *natives.Table, cacheSize int) *Loader {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Loader{
		natives:  nativeTable,
		compiled: &cache.LRU{Size: cacheSize},
		modules:  &cache.LRU{Size: cacheSize},
		scripts:  &cache.LRU{Size: cacheSize},
	}
}

func blobKey(blob []byte) ids.ID { return ids.ID(hashing.ComputeHash256Array(blob)) }

// Flush drops every cached module and script
func (l *Loader) Flush() {
	l.compiled.Flush()
	l.modules.Flush()
	l.scripts.Flush()
}

// deserializeModule parses [blob], sharing parsed modules by content
func (l *Loader) deserializeModule(blob []byte) (*binary.CompiledModule, error) {
	key := blobKey(blob)
	if m, ok := l.compiled.Get(key); ok {
		return m.(*binary.CompiledModule), nil
	}
	m, err := binary.DeserializeModule(blob)
	if err != nil {
		return nil, err
	}
	l.compiled.Put(key, m)
	return m, nil
}

// LoadModule returns module [id] as currently visible through [store]
func (l *Loader) LoadModule(id types.ModuleID, store ModuleStore) (*Module, error) {
	return l.loadModule(id, store, make(map[types.ModuleID]bool))
}

func (l *Loader) loadModule(id types.ModuleID, store ModuleStore, visiting map[types.ModuleID]bool) (*Module, error) {
	if visiting[id] {
		return nil, types.NewError(types.StatusCyclicModuleDependency).
			WithMessage(fmt.Sprintf("module %s depends on itself", id))
	}
	blob, err := store.LoadModule(id)
	if err != nil {
		return nil, err
	}
	key := blobKey(blob)
	if m, ok := l.modules.Get(key); ok {
		return m.(*Module), nil
	}

	compiled, err := l.deserializeModule(blob)
	if err != nil {
		return nil, types.AsVMError(err).Finish(types.ModuleLocation(id))
	}
	if compiled.Self() != id {
		return nil, types.NewError(types.StatusLinkerError).
			WithMessage(fmt.Sprintf("module stored as %s declares itself as %s", id, compiled.Self()))
	}

	visiting[id] = true
	m, err := l.resolveModule(compiled, store, visiting)
	delete(visiting, id)
	if err != nil {
		return nil, types.AsVMError(err).Finish(types.ModuleLocation(id))
	}
	l.modules.Put(key, m)
	return m, nil
}

// typeResolver turns signature tokens of one module or script into types
type typeResolver struct {
	l        *Loader
	store    ModuleStore
	visiting map[types.ModuleID]bool
	handles  binary.Handles
	// self is nil for scripts
	self *Module
}

func (r *typeResolver) structType(idx uint16) (*types.StructType, error) {
	h := r.handles.Structs[idx]
	modID, name := r.handles.StructName(idx)
	if r.self != nil && modID == r.self.ID() {
		s, ok := r.self.structs[name]
		if !ok {
			return nil, types.NewError(types.StatusLookupFailed).
				WithMessage(fmt.Sprintf("struct %s is declared but not defined", name))
		}
		return s, nil
	}

	dep, err := r.l.loadModule(modID, r.store, r.visiting)
	if err != nil {
		return nil, err
	}
	s, ok := dep.structs[name]
	if !ok {
		return nil, types.NewError(types.StatusLookupFailed).
			WithMessage(fmt.Sprintf("struct %s::%s not found", modID, name))
	}
	if uint8(s.Abilities) != h.Abilities || s.TypeParams != int(h.TypeParams) {
		return nil, types.NewError(types.StatusTypeMismatch).
			WithMessage(fmt.Sprintf("struct %s::%s does not match its declaration", modID, name))
	}
	return s, nil
}

func (r *typeResolver) token(t binary.SignatureToken) (types.Type, error) {
	switch t.Kind {
	case binary.TokenBool:
		return types.BoolType, nil
	case binary.TokenU8:
		return types.U8Type, nil
	case binary.TokenU64:
		return types.U64Type, nil
	case binary.TokenU128:
		return types.U128Type, nil
	case binary.TokenAddress:
		return types.AddressType, nil
	case binary.TokenSigner:
		return types.SignerType, nil
	case binary.TokenVector, binary.TokenReference, binary.TokenMutableReference:
		inner, err := r.token(t.Args[0])
		if err != nil {
			return types.Type{}, err
		}
		switch t.Kind {
		case binary.TokenVector:
			return types.VectorType(inner), nil
		case binary.TokenReference:
			return types.ReferenceType(inner), nil
		default:
			return types.MutableReferenceType(inner), nil
		}
	case binary.TokenStruct:
		s, err := r.structType(t.Index)
		if err != nil {
			return types.Type{}, err
		}
		return types.StructOf(s), nil
	case binary.TokenStructInstantiation:
		s, err := r.structType(t.Index)
		if err != nil {
			return types.Type{}, err
		}
		args, err := r.tokens(t.Args)
		if err != nil {
			return types.Type{}, err
		}
		return types.StructInstantiation(s, args...), nil
	case binary.TokenTypeParameter:
		return types.TyParamType(t.Index), nil
	default:
		return types.Type{}, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("unknown token kind %d", t.Kind))
	}
}

func (r *typeResolver) tokens(ts []binary.SignatureToken) ([]types.Type, error) {
	out := make([]types.Type, len(ts))
	for i, t := range ts {
		ty, err := r.token(t)
		if err != nil {
			return nil, err
		}
		out[i] = ty
	}
	return out, nil
}

func (l *Loader) resolveModule(compiled *binary.CompiledModule, store ModuleStore, visiting map[types.ModuleID]bool) (*Module, error) {
	m := &Module{
		Compiled:  compiled,
		structs:   make(map[types.Identifier]*types.StructType, len(compiled.StructDefs)),
		functions: make(map[types.Identifier]*Function, len(compiled.FunctionDefs)),
	}
	self := compiled.Self()

	// declare every struct before resolving fields, which may refer to
	// each other
	for _, def := range compiled.StructDefs {
		h := compiled.StructHandles[def.Handle]
		names := make([]types.Identifier, len(def.Fields))
		for i, f := range def.Fields {
			names[i] = f.Name
		}
		m.structs[h.Name] = &types.StructType{
			Module:     self,
			Name:       h.Name,
			Abilities:  types.Abilities(h.Abilities),
			TypeParams: int(h.TypeParams),
			FieldNames: names,
		}
	}

	r := &typeResolver{
		l:        l,
		store:    store,
		visiting: visiting,
		handles:  compiled.Handles(),
		self:     m,
	}
	for _, def := range compiled.StructDefs {
		s := m.structs[compiled.StructHandles[def.Handle].Name]
		fields := make([]types.Type, len(def.Fields))
		for i, f := range def.Fields {
			ty, err := r.token(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = ty
		}
		s.Fields = fields
	}

	for _, def := range compiled.FunctionDefs {
		h := compiled.FunctionHandles[def.Handle]
		params, err := r.tokens(h.Parameters)
		if err != nil {
			return nil, err
		}
		ret, err := r.tokens(h.Return)
		if err != nil {
			return nil, err
		}
		f := &Function{
			Module:     self,
			Name:       h.Name,
			Visibility: def.Visibility,
			TypeParams: h.TypeParams,
			Parameters: params,
			Return:     ret,
			Code:       def.Code,
		}
		if def.Native {
			native, ok := l.natives.Lookup(self, h.Name)
			if !ok {
				return nil, types.NewError(types.StatusMissingNativeFunction).
					WithMessage(fmt.Sprintf("%s::%s", self, h.Name))
			}
			f.Native = native
		}
		m.functions[h.Name] = f
	}

	// dependencies referenced only by function handles must still exist
	for _, dep := range compiled.ImmediateDependencies() {
		if _, err := l.loadModule(dep, store, visiting); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadFunction returns [module]::[name] instantiated with [tyArgs]. With
// [scriptExecution] set, the function must be script visible.
func (l *Loader) LoadFunction(
	module types.ModuleID,
	name types.Identifier,
	tyArgs []types.Type,
	store ModuleStore,
	scriptExecution bool,
) (*Function, error) {
	m, err := l.LoadModule(module, store)
	if err != nil {
		return nil, err
	}
	f, ok := m.Function(name)
	if !ok {
		return nil, types.NewError(types.StatusLookupFailed).
			WithMessage(fmt.Sprintf("function %s::%s not found", module, name)).
			Finish(types.ModuleLocation(module))
	}
	if scriptExecution && f.Visibility != binary.Script {
		return nil, types.NewError(types.StatusExecuteScriptFunctionCalledOnNonScriptVisibleFunction).
			WithMessage(f.String()).
			Finish(types.ModuleLocation(module))
	}
	if len(tyArgs) != len(f.TypeParams) {
		return nil, types.NewError(types.StatusNumberOfTypeArgumentsMismatch).
			WithMessage(fmt.Sprintf("%s expects %d type arguments, found %d", f, len(f.TypeParams), len(tyArgs))).
			Finish(types.ModuleLocation(module))
	}
	return f, nil
}

// LoadScript resolves a script blob into its entry function
func (l *Loader) LoadScript(blob []byte, tyArgs []types.Type, store ModuleStore) (*Function, error) {
	key := blobKey(blob)
	var f *Function
	if cached, ok := l.scripts.Get(key); ok {
		f = cached.(*Function)
	} else {
		script, err := binary.DeserializeScript(blob)
		if err != nil {
			return nil, types.AsVMError(err).Finish(types.ScriptLocation)
		}
		r := &typeResolver{
			l:        l,
			store:    store,
			visiting: make(map[types.ModuleID]bool),
			handles:  script.Handles(),
		}
		params, err := r.tokens(script.Parameters)
		if err != nil {
			return nil, types.AsVMError(err).Finish(types.ScriptLocation)
		}
		ret, err := r.tokens(script.Return)
		if err != nil {
			return nil, types.AsVMError(err).Finish(types.ScriptLocation)
		}
		for _, dep := range script.ImmediateDependencies() {
			if _, err := l.LoadModule(dep, store); err != nil {
				return nil, types.AsVMError(err).Finish(types.ScriptLocation)
			}
		}
		f = &Function{
			Name:       scriptFunctionName,
			Visibility: binary.Script,
			IsScript:   true,
			TypeParams: script.TypeParams,
			Parameters: params,
			Return:     ret,
			Code:       script.Code,
		}
		l.scripts.Put(key, f)
	}

	if len(tyArgs) != len(f.TypeParams) {
		return nil, types.NewError(types.StatusNumberOfTypeArgumentsMismatch).
			WithMessage(fmt.Sprintf("script expects %d type arguments, found %d", len(f.TypeParams), len(tyArgs))).
			Finish(types.ScriptLocation)
	}
	return f, nil
}
