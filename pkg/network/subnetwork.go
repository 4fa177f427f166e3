package network

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/morezero/portal-node/pkg/events"
	"github.com/morezero/portal-node/pkg/jsonrpc"
)

const subnetworkLogPrefix = "network:subnetwork"

// Subnetwork answers messages addressed to one content subnetwork. Errors are
// reported as plain strings.
type Subnetwork struct {
	name   string
	deps   Deps
	radius *big.Int
}

// NewSubnetwork creates the actor for the named subnetwork. A nil radius is
// zero.
func NewSubnetwork(name string, deps Deps, radius *big.Int) *Subnetwork {
	if deps.Publisher == nil {
		deps.Publisher = &events.NoOpPublisher{}
	}
	r := new(big.Int)
	if radius != nil {
		r.Set(radius)
	}
	return &Subnetwork{name: name, deps: deps, radius: r}
}

// Name returns the subnetwork name.
func (s *Subnetwork) Name() string {
	return s.name
}

// HandleHistory answers a history network message.
func (s *Subnetwork) HandleHistory(ctx context.Context, msg jsonrpc.HistoryRequest) {
	s.handle(ctx, msg.Endpoint.Kind, msg.Endpoint.Nodes, msg.Resp)
}

// HandleState answers a state network message.
func (s *Subnetwork) HandleState(ctx context.Context, msg jsonrpc.StateRequest) {
	s.handle(ctx, msg.Endpoint.Kind, msg.Endpoint.Nodes, msg.Resp)
}

func (s *Subnetwork) handle(ctx context.Context, kind jsonrpc.SubnetworkKind, nodes *jsonrpc.NodesParams, resp *jsonrpc.Responder[string]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s: panic handling %s: %v", subnetworkLogPrefix, s.name, kind, r))
			_ = resp.Fail("internal error")
		}
	}()

	if resp.Abandoned() {
		slog.Debug(fmt.Sprintf("%s - %s: caller gone, skipping %s", subnetworkLogPrefix, s.name, kind))
		_ = resp.Close()
		return
	}

	var err error
	switch kind {
	case jsonrpc.DataRadius:
		err = resp.Ok((*hexutil.Big)(s.radius))
	case jsonrpc.SubnetworkRoutingTable:
		table, tErr := routingTable(ctx, s.deps, s.name)
		if tErr != nil {
			err = resp.Fail(tErr.Error())
			break
		}
		err = resp.Ok(table)
	case jsonrpc.StoreNodes:
		if nodes == nil {
			err = resp.Fail("missing nodes params")
			break
		}
		added, sErr := storeNodes(ctx, s.deps, s.name, nodes)
		if sErr != nil {
			err = resp.Fail(sErr.Error())
			break
		}
		err = resp.Ok(AddNodesResult{Added: added, Total: nodes.Total})
	default:
		err = resp.Fail(fmt.Sprintf("unsupported endpoint: %s", kind))
	}

	if err != nil {
		slog.Debug(fmt.Sprintf("%s - %s: reply to %s dropped: %v", subnetworkLogPrefix, s.name, kind, err))
	}
}
