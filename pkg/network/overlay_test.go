package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/portal-node/pkg/events"
	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/peer"
	"github.com/morezero/portal-node/pkg/peer/peertest"
)

type failingStore struct{}

func (failingStore) Put(context.Context, string, []*peer.Record) (int, error) {
	return 0, errors.New("disk full")
}

func (failingStore) List(context.Context, string, int) ([]*peer.Record, error) {
	return nil, errors.New("disk full")
}

func newDeps(t *testing.T) (Deps, *[]*events.PeersDiscoveredEvent) {
	t.Helper()
	var published []*events.PeersDiscoveredEvent
	return Deps{
		Local: peertest.Record(t),
		Store: NewMemoryPeerStore(),
		Publisher: events.NewCallbackPublisher(func(_ context.Context, e *events.PeersDiscoveredEvent) error {
			published = append(published, e)
			return nil
		}),
	}, &published
}

func askOverlay(t *testing.T, o *Overlay, endpoint jsonrpc.PortalEndpoint, params jsonrpc.Params) jsonrpc.Result[error] {
	t.Helper()
	msg, recv := jsonrpc.NewPortalRequest(endpoint, params)
	o.Handle(context.Background(), msg)

	res, err := recv.Recv(context.Background())
	require.NoError(t, err)
	return res
}

func nodesArg(t *testing.T, total int, recs ...*peer.Record) json.RawMessage {
	t.Helper()
	enrs := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		enrs = append(enrs, peertest.JSON(t, rec))
	}
	return json.RawMessage(fmt.Sprintf(`{"total":%d,"enrs":%s}`, total, jsonrpc.Positional(enrs...).Value()))
}

func TestOverlay_NodeInfo(t *testing.T) {
	deps, _ := newDeps(t)
	o := NewOverlay(deps, semver.MustParse("1.0.0"))

	res := askOverlay(t, o, jsonrpc.NodeInfo, jsonrpc.NoParams())
	require.False(t, res.Failed)

	info, ok := res.Value.(NodeInfo)
	require.True(t, ok)
	assert.Equal(t, deps.Local.NodeID(), info.NodeID)
	assert.Equal(t, deps.Local.String(), info.Enr)
	assert.Equal(t, "10.0.0.1", info.IP)
	assert.Equal(t, 9000, info.UDP)
}

func TestOverlay_ClientVersion(t *testing.T) {
	deps, _ := newDeps(t)

	res := askOverlay(t, NewOverlay(deps, semver.MustParse("v0.3.1-beta.2")), jsonrpc.ClientVersion, jsonrpc.NoParams())
	require.False(t, res.Failed)
	assert.Equal(t, "portal-node/v0.3.1-beta.2", res.Value)

	res = askOverlay(t, NewOverlay(deps, nil), jsonrpc.ClientVersion, jsonrpc.NoParams())
	assert.Equal(t, "portal-node/v0.0.0", res.Value)
}

func TestOverlay_AddNodesThenRoutingTable(t *testing.T) {
	deps, published := newDeps(t)
	o := NewOverlay(deps, nil)
	a, b := peertest.Record(t), peertest.Record(t)

	res := askOverlay(t, o, jsonrpc.AddNodes, jsonrpc.Positional(nodesArg(t, 2, a, b)))
	require.False(t, res.Failed, "err = %v", res.Err)
	assert.Equal(t, AddNodesResult{Added: 2, Total: 2}, res.Value)

	require.Len(t, *published, 1)
	assert.Equal(t, SubnetworkOverlay, (*published)[0].Subnetwork)
	assert.ElementsMatch(t, []string{a.NodeID(), b.NodeID()}, (*published)[0].NodeIDs)

	res = askOverlay(t, o, jsonrpc.RoutingTableInfo, jsonrpc.NoParams())
	require.False(t, res.Failed)
	table, ok := res.Value.(*RoutingTable)
	require.True(t, ok)
	assert.Equal(t, deps.Local.NodeID(), table.LocalNodeID)
	assert.Len(t, table.Peers, 2)
}

func TestOverlay_AddNodesNamedParams(t *testing.T) {
	deps, _ := newDeps(t)
	named, err := jsonrpc.ParseParams(nodesArg(t, 1, peertest.Record(t)))
	require.NoError(t, err)

	res := askOverlay(t, NewOverlay(deps, nil), jsonrpc.AddNodes, named)
	require.False(t, res.Failed, "err = %v", res.Err)
	assert.Equal(t, AddNodesResult{Added: 1, Total: 1}, res.Value)
}

func TestOverlay_AddNodesInvalidParams(t *testing.T) {
	deps, published := newDeps(t)

	res := askOverlay(t, NewOverlay(deps, nil), jsonrpc.AddNodes, jsonrpc.Positional(json.RawMessage(`{"total":1}`)))
	require.True(t, res.Failed)
	assert.ErrorIs(t, res.Err, jsonrpc.ErrMissingEnrs)
	assert.Empty(t, *published)
}

func TestOverlay_StoreFailure(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Store = failingStore{}
	o := NewOverlay(deps, nil)

	res := askOverlay(t, o, jsonrpc.AddNodes, jsonrpc.Positional(nodesArg(t, 1, peertest.Record(t))))
	require.True(t, res.Failed)
	assert.Contains(t, res.Err.Error(), "disk full")

	res = askOverlay(t, o, jsonrpc.RoutingTableInfo, jsonrpc.NoParams())
	require.True(t, res.Failed)
}

func TestOverlay_PublishFailureDoesNotFailRequest(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Publisher = events.NewCallbackPublisher(func(context.Context, *events.PeersDiscoveredEvent) error {
		return errors.New("comms down")
	})

	res := askOverlay(t, NewOverlay(deps, nil), jsonrpc.AddNodes, jsonrpc.Positional(nodesArg(t, 1, peertest.Record(t))))
	require.False(t, res.Failed, "err = %v", res.Err)
}

func TestOverlay_UnknownEndpoint(t *testing.T) {
	deps, _ := newDeps(t)

	res := askOverlay(t, NewOverlay(deps, nil), jsonrpc.PortalEndpoint(99), jsonrpc.NoParams())
	require.True(t, res.Failed)

	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, res.Err, &rpcErr)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, rpcErr.Code)
}

func TestOverlay_PanicStillReplies(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Local = nil

	res := askOverlay(t, NewOverlay(deps, nil), jsonrpc.NodeInfo, jsonrpc.NoParams())
	require.True(t, res.Failed)

	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, res.Err, &rpcErr)
	assert.Equal(t, jsonrpc.CodeInternal, rpcErr.Code)
}

func TestOverlay_SkipsAbandonedRequest(t *testing.T) {
	deps, published := newDeps(t)
	o := NewOverlay(deps, nil)

	msg, recv := jsonrpc.NewPortalRequest(jsonrpc.AddNodes, jsonrpc.Positional(nodesArg(t, 1, peertest.Record(t))))
	recv.Close()
	o.Handle(context.Background(), msg)

	assert.True(t, msg.Resp.Spent())
	assert.Empty(t, *published)
	stored, err := deps.Store.List(context.Background(), SubnetworkOverlay, 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
