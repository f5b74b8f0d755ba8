// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/resourcevm/service"
	"github.com/ava-labs/resourcevm/types"
)

// Client defines resourcevm client operations.
type Client interface {
	// PublishModuleBundle publishes [modules] under [sender] and returns the
	// published module IDs
	PublishModuleBundle(ctx context.Context, sender types.AccountAddress, modules [][]byte) ([]string, error)

	// ExecuteScriptFunction runs [module]::[function] signed by [senders]
	ExecuteScriptFunction(ctx context.Context, module types.ModuleID, function types.Identifier, tyArgs []types.TypeTag, args [][]byte, senders []types.AccountAddress) (*service.ExecuteReply, error)

	// CallFunction runs [module]::[function] without committing its effects
	CallFunction(ctx context.Context, module types.ModuleID, function types.Identifier, tyArgs []types.TypeTag, args [][]byte) ([][]byte, error)

	// GetModule fetches the published bytes of a module
	GetModule(ctx context.Context, module types.ModuleID) ([]byte, error)

	// GetResource fetches the bytes of a resource
	GetResource(ctx context.Context, addr types.AccountAddress, tag types.StructTag) ([]byte, error)

	// GetEvents fetches the events emitted under [key]
	GetEvents(ctx context.Context, key []byte) ([]service.Event, error)
}

// New creates a new client object for the daemon listening at [uri].
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, service.Endpoint, service.Name)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func encodeAll(bs [][]byte) ([]string, error) {
	out := make([]string, len(bs))
	for i, b := range bs {
		str, err := formatting.EncodeWithChecksum(formatting.Hex, b)
		if err != nil {
			return nil, err
		}
		out[i] = str
	}
	return out, nil
}

func tagStrings(tags []types.TypeTag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}

func (cli *client) PublishModuleBundle(ctx context.Context, sender types.AccountAddress, modules [][]byte) ([]string, error) {
	encoded, err := encodeAll(modules)
	if err != nil {
		return nil, err
	}
	resp := new(service.PublishModuleBundleReply)
	err = cli.req.SendRequest(ctx,
		"publishModuleBundle",
		&service.PublishModuleBundleArgs{Sender: sender, Modules: encoded},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp.Modules, nil
}

func (cli *client) ExecuteScriptFunction(
	ctx context.Context,
	module types.ModuleID,
	function types.Identifier,
	tyArgs []types.TypeTag,
	args [][]byte,
	senders []types.AccountAddress,
) (*service.ExecuteReply, error) {
	encoded, err := encodeAll(args)
	if err != nil {
		return nil, err
	}
	resp := new(service.ExecuteReply)
	err = cli.req.SendRequest(ctx,
		"executeScriptFunction",
		&service.ExecuteScriptFunctionArgs{
			ExecuteArgs: service.ExecuteArgs{
				TypeArgs: tagStrings(tyArgs),
				Args:     encoded,
				Senders:  senders,
			},
			Module:   module.String(),
			Function: string(function),
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) CallFunction(
	ctx context.Context,
	module types.ModuleID,
	function types.Identifier,
	tyArgs []types.TypeTag,
	args [][]byte,
) ([][]byte, error) {
	encoded, err := encodeAll(args)
	if err != nil {
		return nil, err
	}
	resp := new(service.CallFunctionReply)
	err = cli.req.SendRequest(ctx,
		"callFunction",
		&service.CallFunctionArgs{
			Module:   module.String(),
			Function: string(function),
			TypeArgs: tagStrings(tyArgs),
			Args:     encoded,
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	rets := make([][]byte, len(resp.Returns))
	for i, str := range resp.Returns {
		if rets[i], err = formatting.Decode(formatting.Hex, str); err != nil {
			return nil, err
		}
	}
	return rets, nil
}

func (cli *client) GetModule(ctx context.Context, module types.ModuleID) ([]byte, error) {
	resp := new(service.GetModuleReply)
	err := cli.req.SendRequest(ctx,
		"getModule",
		&service.GetModuleArgs{Module: module.String()},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return formatting.Decode(formatting.Hex, resp.Module)
}

func (cli *client) GetResource(ctx context.Context, addr types.AccountAddress, tag types.StructTag) ([]byte, error) {
	resp := new(service.GetResourceReply)
	err := cli.req.SendRequest(ctx,
		"getResource",
		&service.GetResourceArgs{Address: addr, Type: tag.String()},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return formatting.Decode(formatting.Hex, resp.Resource)
}

func (cli *client) GetEvents(ctx context.Context, key []byte) ([]service.Event, error) {
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, key)
	if err != nil {
		return nil, err
	}
	resp := new(service.GetEventsReply)
	err = cli.req.SendRequest(ctx,
		"getEvents",
		&service.GetEventsArgs{Key: encoded},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}
