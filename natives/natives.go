// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package natives binds functions declared native in published modules to
// their Go implementations.
package natives

import (
	"fmt"
	"sort"

	"github.com/ava-labs/resourcevm/datacache"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// Context is what a native function may reach besides its arguments
type Context struct {
	DataStore  datacache.DataStore
	Types      datacache.TypeConverter
	Extensions *Extensions
}

// Result is the outcome of a native call. A non nil AbortCode aborts the
// caller after Cost has been charged.
type Result struct {
	Cost      uint64
	Values    []values.Value
	AbortCode *uint64
}

// Ok returns a successful result
func Ok(cost uint64, vals ...values.Value) Result {
	return Result{Cost: cost, Values: vals}
}

// Abort returns a result aborting with [code]
func Abort(cost uint64, code uint64) Result {
	return Result{Cost: cost, AbortCode: &code}
}

// Function is a native implementation. Errors are reserved for invariant
// violations; expected failures are reported with Abort.
type Function func(ctx *Context, tyArgs []types.Type, args []values.Value) (Result, error)

// Entry names a native function
type Entry struct {
	Address  types.AccountAddress
	Module   types.Identifier
	Function types.Identifier
	Native   Function
}

type functionKey struct {
	module   types.ModuleID
	function types.Identifier
}

// Table maps native function names to implementations
type Table struct {
	functions map[functionKey]Function
}

// NewTable returns a table holding [entries]. Later entries replace earlier
// entries with the same name.
func NewTable(entries ...Entry) *Table {
	t := &Table{functions: make(map[functionKey]Function, len(entries))}
	t.Add(entries...)
	return t
}

// Add registers [entries]
func (t *Table) Add(entries ...Entry) {
	for _, e := range entries {
		t.functions[functionKey{
			module:   types.NewModuleID(e.Address, e.Module),
			function: e.Function,
		}] = e.Native
	}
}

// Lookup returns the native for [module]::[name]
func (t *Table) Lookup(module types.ModuleID, name types.Identifier) (Function, bool) {
	f, ok := t.functions[functionKey{module: module, function: name}]
	return f, ok
}

// Names returns every registered function as module::function, sorted
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.functions))
	for k := range t.functions {
		names = append(names, fmt.Sprintf("%s::%s", k.module, k.function))
	}
	sort.Strings(names)
	return names
}

// Extensions carries session scoped state for natives, keyed by name
type Extensions struct {
	entries map[string]interface{}
}

// NewExtensions returns an empty extension set
func NewExtensions() *Extensions {
	return &Extensions{entries: make(map[string]interface{})}
}

// Add registers [ext] under [name], replacing any previous value
func (e *Extensions) Add(name string, ext interface{}) {
	e.entries[name] = ext
}

// Get returns the extension registered under [name]
func (e *Extensions) Get(name string) (interface{}, bool) {
	if e == nil {
		return nil, false
	}
	ext, ok := e.entries[name]
	return ext, ok
}

// Remove deletes and returns the extension registered under [name]
func (e *Extensions) Remove(name string) (interface{}, bool) {
	ext, ok := e.Get(name)
	if ok {
		delete(e.entries, name)
	}
	return ext, ok
}

// ArgumentError reports a native called with arguments the verifier should
// have rejected.
func ArgumentError(name string, want int, args []values.Value, wantTy int, tyArgs []types.Type) error {
	return types.NewError(types.StatusUnknownInvariantViolation).
		WithMessage(fmt.Sprintf("native %s expects %d arguments and %d type arguments, found %d and %d",
			name, want, wantTy, len(args), len(tyArgs)))
}
