// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime drives execution sessions: it resolves callees, marshals
// arguments, invokes the interpreter and publishes modules.
package runtime

import (
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/datacache"
	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/interpreter"
	"github.com/ava-labs/resourcevm/loader"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/resolver"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// Interpreter runs a loaded function against the session's data store
type Interpreter interface {
	Entrypoint(
		f *loader.Function,
		tyArgs []types.Type,
		args []values.Value,
		ctx *natives.Context,
		meter *gas.Status,
	) ([]values.Value, error)
}

// Config tunes a VM
type Config struct {
	// ModuleCacheSize bounds each of the loader's caches
	ModuleCacheSize int
	// Interpreter defaults to the native dispatcher
	Interpreter Interpreter
}

// VM is shared by every session. It holds no session state and may be used
// by concurrent sessions.
type VM struct {
	loader      *loader.Loader
	interpreter Interpreter
}

// New returns a VM binding natives from [nativeTable]
func New(nativeTable *natives.Table, config Config) *VM {
	interp := config.Interpreter
	if interp == nil {
		interp = interpreter.New()
	}
	log.Debug("creating VM", "natives", len(nativeTable.Names()), "moduleCacheSize", config.ModuleCacheSize)
	return &VM{
		loader:      loader.New(nativeTable, config.ModuleCacheSize),
		interpreter: interp,
	}
}

// Loader returns the VM's code loader
func (vm *VM) Loader() *loader.Loader { return vm.loader }

// NewSession opens a session reading through [remote]
func (vm *VM) NewSession(remote resolver.MoveResolver) *Session {
	return vm.NewSessionWithExtensions(remote, natives.NewExtensions())
}

// NewSessionWithExtensions opens a session whose natives can reach [ext]
func (vm *VM) NewSessionWithExtensions(remote resolver.MoveResolver, ext *natives.Extensions) *Session {
	if ext == nil {
		ext = natives.NewExtensions()
	}
	return &Session{
		vm:         vm,
		data:       datacache.New(remote, vm.loader),
		extensions: ext,
	}
}
