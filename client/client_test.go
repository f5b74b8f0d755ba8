// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/resourcevm/binary"
	"github.com/ava-labs/resourcevm/framework"
	"github.com/ava-labs/resourcevm/runtime"
	"github.com/ava-labs/resourcevm/service"
	"github.com/ava-labs/resourcevm/state"
	"github.com/ava-labs/resourcevm/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	require := require.New(t)

	vm := runtime.New(framework.Natives(), runtime.Config{})
	st, err := state.NewState(memdb.New(), state.DefaultTableCosts, nil)
	require.NoError(err)
	require.NoError(framework.Initialize(vm, st))

	handler, err := service.NewHandler(service.New(vm, st, service.DefaultConfig))
	require.NoError(err)
	mux := http.NewServeMux()
	mux.Handle(service.Endpoint, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	cli := New(newTestServer(t).URL)

	table, err := cli.GetModule(ctx, types.NewModuleID(framework.Address, "Table"))
	require.NoError(err)
	require.NotEmpty(table)

	sender := types.MustParseAddress("0x2")
	id := types.NewModuleID(sender, "Empty")
	b := binary.NewModuleBuilder(id)
	b.Struct("S", types.AbilityKey, 0, binary.FieldDefinition{Name: "flag", Type: binary.BoolToken})
	blob, err := b.Bytes()
	require.NoError(err)

	published, err := cli.PublishModuleBundle(ctx, sender, [][]byte{blob})
	require.NoError(err)
	require.Equal([]string{id.String()}, published)

	got, err := cli.GetModule(ctx, id)
	require.NoError(err)
	require.Equal(blob, got)

	// the server reports failures as JSON-RPC errors
	_, err = cli.PublishModuleBundle(ctx, types.MustParseAddress("0x3"), [][]byte{blob})
	require.Error(err)
	_, err = cli.GetResource(ctx, sender, types.StructTag{Address: sender, Module: "Empty", Name: "S"})
	require.Error(err)

	events, err := cli.GetEvents(ctx, []byte{1})
	require.NoError(err)
	require.Empty(events)
}

func TestClientUnknownEndpoint(t *testing.T) {
	server := newTestServer(t)

	// requests are posted to [uri]/rpc, so a uri that already carries the
	// path misses the handler
	cli := New(server.URL + service.Endpoint)
	_, err := cli.GetModule(context.Background(), types.NewModuleID(framework.Address, "Table"))
	require.Error(t, err)
}
