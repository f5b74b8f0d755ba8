// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package interpreter runs loaded functions. Native functions are
// dispatched directly; bytecode bodies are handed to a fallback, if any.
package interpreter

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/loader"
	"github.com/ava-labs/resourcevm/natives"
	"github.com/ava-labs/resourcevm/types"
	"github.com/ava-labs/resourcevm/values"
)

// Executor runs a function to completion and returns its results
type Executor interface {
	Entrypoint(
		f *loader.Function,
		tyArgs []types.Type,
		args []values.Value,
		ctx *natives.Context,
		meter *gas.Status,
	) ([]values.Value, error)
}

var _ Executor = (*Interpreter)(nil)

// Interpreter dispatches native functions and delegates everything else to
// Fallback
type Interpreter struct {
	Fallback Executor
}

// New returns an interpreter with no bytecode fallback
func New() *Interpreter { return &Interpreter{} }

// Entrypoint implements Executor
func (i *Interpreter) Entrypoint(
	f *loader.Function,
	tyArgs []types.Type,
	args []values.Value,
	ctx *natives.Context,
	meter *gas.Status,
) ([]values.Value, error) {
	if !f.IsNative() {
		if i.Fallback == nil {
			return nil, types.NewError(types.StatusUnimplementedFunctionality).
				WithMessage(fmt.Sprintf("no interpreter for the body of %s", f)).
				Finish(f.Location())
		}
		return i.Fallback.Entrypoint(f, tyArgs, args, ctx, meter)
	}
	if len(args) != len(f.Parameters) {
		return nil, types.NewError(types.StatusUnknownInvariantViolation).
			WithMessage(fmt.Sprintf("%s takes %d arguments, found %d", f, len(f.Parameters), len(args))).
			Finish(f.Location())
	}

	result, err := f.Native(ctx, tyArgs, args)
	if err != nil {
		log.Debug("native call failed", "function", f, "error", err)
		return nil, types.AsVMError(err).Finish(f.Location())
	}
	if err := meter.Charge(result.Cost); err != nil {
		return nil, types.AsVMError(err).Finish(f.Location())
	}
	if result.AbortCode != nil {
		return nil, types.NewError(types.StatusAborted).
			WithSubStatus(*result.AbortCode).
			WithMessage(fmt.Sprintf("%s aborted", f)).
			Finish(f.Location())
	}
	return result.Values, nil
}
