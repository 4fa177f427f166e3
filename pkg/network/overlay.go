package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/morezero/portal-node/pkg/events"
	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/peer"
)

const overlayLogPrefix = "network:overlay"

// ClientName prefixes the version reported by web3_clientVersion.
const ClientName = "portal-node"

// NodeInfo is the result of discv5_nodeInfo.
type NodeInfo struct {
	Enr    string `json:"enr"`
	NodeID string `json:"nodeId"`
	IP     string `json:"ip,omitempty"`
	UDP    int    `json:"udpPort,omitempty"`
}

// PeerEntry is one routing table row.
type PeerEntry struct {
	NodeID string `json:"nodeId"`
	Enr    string `json:"enr"`
	Seq    uint64 `json:"seq"`
}

// RoutingTable is the result of the routingTableInfo endpoints.
type RoutingTable struct {
	LocalNodeID string      `json:"localNodeId"`
	Peers       []PeerEntry `json:"peers"`
}

// AddNodesResult is the result of the node-adding endpoints.
type AddNodesResult struct {
	Added int   `json:"added"`
	Total uint8 `json:"total"`
}

// Deps are the collaborators shared by the actors.
type Deps struct {
	Local     *peer.Record
	Store     PeerStore
	Publisher events.PeerPublisher
	// TableLimit bounds routing table answers; <= 0 means unbounded.
	TableLimit int
}

// Overlay answers messages addressed to the general overlay.
type Overlay struct {
	deps    Deps
	version *semver.Version
}

// NewOverlay creates the overlay actor. version is reported by
// web3_clientVersion.
func NewOverlay(deps Deps, version *semver.Version) *Overlay {
	if deps.Publisher == nil {
		deps.Publisher = &events.NoOpPublisher{}
	}
	if version == nil {
		version = semver.MustParse("0.0.0")
	}
	return &Overlay{deps: deps, version: version}
}

// Handle answers msg exactly once. Work for a caller that already stopped
// waiting is skipped, so a timed-out addNodes stores nothing.
func (o *Overlay) Handle(ctx context.Context, msg jsonrpc.PortalRequest) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - panic handling %s: %v", overlayLogPrefix, msg.Endpoint, r))
			_ = msg.Resp.Fail(jsonrpc.NewError(jsonrpc.CodeInternal, "internal error"))
		}
	}()

	if msg.Resp.Abandoned() {
		slog.Debug(fmt.Sprintf("%s - caller gone, skipping %s", overlayLogPrefix, msg.Endpoint))
		_ = msg.Resp.Close()
		return
	}

	var err error
	switch msg.Endpoint {
	case jsonrpc.NodeInfo:
		err = msg.Resp.Ok(nodeInfo(o.deps.Local))
	case jsonrpc.RoutingTableInfo:
		table, tErr := routingTable(ctx, o.deps, SubnetworkOverlay)
		if tErr != nil {
			err = msg.Resp.Fail(tErr)
			break
		}
		err = msg.Resp.Ok(table)
	case jsonrpc.ClientVersion:
		err = msg.Resp.Ok(fmt.Sprintf("%s/v%s", ClientName, o.version.String()))
	case jsonrpc.AddNodes:
		err = o.addNodes(ctx, msg)
	default:
		err = msg.Resp.Fail(jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("unsupported endpoint: %s", msg.Endpoint)))
	}

	if err != nil {
		slog.Debug(fmt.Sprintf("%s - reply to %s dropped: %v", overlayLogPrefix, msg.Endpoint, err))
	}
}

func (o *Overlay) addNodes(ctx context.Context, msg jsonrpc.PortalRequest) error {
	nodes, err := jsonrpc.DecodeNodesArgument(msg.Params)
	if err != nil {
		return msg.Resp.Fail(err)
	}

	added, err := storeNodes(ctx, o.deps, SubnetworkOverlay, nodes)
	if err != nil {
		return msg.Resp.Fail(err)
	}
	return msg.Resp.Ok(AddNodesResult{Added: added, Total: nodes.Total})
}
