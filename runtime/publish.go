// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/gas"
	"github.com/ava-labs/resourcevm/types"
)

// gas charged per byte of published module
const publishByteCost = 1

// PublishModule publishes a single module under [sender]
func (s *Session) PublishModule(module []byte, sender types.AccountAddress, meter *gas.Status) error {
	return s.PublishModuleBundle([][]byte{module}, sender, meter)
}

// PublishModuleBundle publishes [modules] under [sender]. Either every
// module is staged in the session or, on any failure, none is.
//
// Modules are verified in the order given. Bundle modules verified so far
// are treated as already published when a later one is linked, and a module
// linked against a later bundle module is linked again once that module is
// verified. A cycle or forward reference within the bundle is therefore
// caught at the latest when its last member is verified.
//
// [meter] is charged for every module byte before the module is
// deserialized.
func (s *Session) PublishModuleBundle(modules [][]byte, sender types.AccountAddress, meter *gas.Status) error {
	compiled := make([]*binary.CompiledModule, len(modules))
	for i, blob := range modules {
		if err := meter.Charge(publishByteCost * uint64(len(blob))); err != nil {
			log.Debug("out of gas publishing module", "index", i, "size", len(blob))
			return finish(err)
		}
		m, err := binary.DeserializeModule(blob)
		if err != nil {
			log.Warn("module deserialization failed", "index", i, "error", err)
			return finish(err)
		}
		compiled[i] = m
	}

	// the self address is where a module ends up, so it must belong to the
	// sender
	for _, m := range compiled {
		if m.Address() != sender {
			return types.NewError(types.StatusModuleAddressDoesNotMatchSender).
				WithMessage(fmt.Sprintf("module %s cannot be published by %s", m.Self(), sender)).
				Finish(types.UndefinedLocation)
		}
	}

	seen := make(map[types.ModuleID]struct{}, len(compiled))
	for _, m := range compiled {
		id := m.Self()
		exists, err := s.data.ExistsModule(id)
		if err != nil {
			return finish(err)
		}
		if exists {
			old, err := s.vm.loader.LoadModule(id, s.data)
			if err != nil {
				return err
			}
			if !binary.CheckCompatibility(old.Compiled, m).IsFullyCompatible() {
				return types.NewError(types.StatusBackwardIncompatibleModuleUpdate).
					WithMessage(fmt.Sprintf("update of %s is not backward compatible", id)).
					Finish(types.UndefinedLocation)
			}
		}
		if _, ok := seen[id]; ok {
			return types.NewError(types.StatusDuplicateModuleName).
				WithMessage(fmt.Sprintf("%s appears twice in the bundle", id)).
				Finish(types.UndefinedLocation)
		}
		seen[id] = struct{}{}
	}

	if err := s.vm.loader.VerifyModuleBundleForPublication(compiled, s.data); err != nil {
		log.Debug("module bundle failed verification", "sender", sender, "error", err)
		return err
	}

	for i, m := range compiled {
		if err := s.data.PublishModule(m.Self(), modules[i]); err != nil {
			return finish(err)
		}
	}
	return nil
}
