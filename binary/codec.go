// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binary

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/resourcevm/types"
)

const (
	// CodecVersion is the current binary format version
	CodecVersion = 0
)

// Codec serializes compiled modules and scripts
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&CompiledModule{}),
		c.RegisterType(&CompiledScript{}),
	)
	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// DeserializeModule parses and bounds checks a module blob
func DeserializeModule(b []byte) (*CompiledModule, error) {
	m := &CompiledModule{}
	version, err := Codec.Unmarshal(b, m)
	if err != nil {
		return nil, types.NewError(types.StatusCodeDeserializationError).WithCause(err)
	}
	if version != CodecVersion {
		return nil, types.NewError(types.StatusUnknownBinaryFormat)
	}
	if err := checkModuleBounds(m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeserializeScript parses and bounds checks a script blob
func DeserializeScript(b []byte) (*CompiledScript, error) {
	s := &CompiledScript{}
	version, err := Codec.Unmarshal(b, s)
	if err != nil {
		return nil, types.NewError(types.StatusCodeDeserializationError).WithCause(err)
	}
	if version != CodecVersion {
		return nil, types.NewError(types.StatusUnknownBinaryFormat)
	}
	if err := checkScriptBounds(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SerializeModule returns the blob of [m]
func SerializeModule(m *CompiledModule) ([]byte, error) {
	return Codec.Marshal(CodecVersion, m)
}

// SerializeScript returns the blob of [s]
func SerializeScript(s *CompiledScript) ([]byte, error) {
	return Codec.Marshal(CodecVersion, s)
}
