package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/portal-node/pkg/events"
	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/metrics"
	"github.com/morezero/portal-node/pkg/peer"
)

const peersLogPrefix = "network:peers"

func nodeInfo(local *peer.Record) NodeInfo {
	info := NodeInfo{Enr: local.String(), NodeID: local.NodeID(), UDP: local.UDP()}
	if ip := local.IP(); ip != nil {
		info.IP = ip.String()
	}
	return info
}

func routingTable(ctx context.Context, deps Deps, subnetwork string) (*RoutingTable, error) {
	recs, err := deps.Store.List(ctx, subnetwork, deps.TableLimit)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to list %s peers: %w", peersLogPrefix, subnetwork, err)
	}

	table := &RoutingTable{LocalNodeID: deps.Local.NodeID(), Peers: make([]PeerEntry, 0, len(recs))}
	for _, rec := range recs {
		table.Peers = append(table.Peers, PeerEntry{NodeID: rec.NodeID(), Enr: rec.String(), Seq: rec.Seq()})
	}
	return table, nil
}

// storeNodes persists the records and announces them. A failed announcement
// is logged; the records are already stored.
func storeNodes(ctx context.Context, deps Deps, subnetwork string, nodes *jsonrpc.NodesParams) (int, error) {
	added, err := deps.Store.Put(ctx, subnetwork, nodes.Enrs)
	if err != nil {
		return 0, fmt.Errorf("%s - failed to store %s peers: %w", peersLogPrefix, subnetwork, err)
	}
	metrics.RecordPeersStored(subnetwork, added)

	event := &events.PeersDiscoveredEvent{
		Subnetwork: subnetwork,
		NodeIDs:    make([]string, 0, len(nodes.Enrs)),
		Enrs:       make([]string, 0, len(nodes.Enrs)),
		Added:      added,
		Total:      nodes.Total,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, rec := range nodes.Enrs {
		event.NodeIDs = append(event.NodeIDs, rec.NodeID())
		event.Enrs = append(event.Enrs, rec.String())
	}
	if err := deps.Publisher.PublishPeersDiscovered(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s discovery: %v", peersLogPrefix, subnetwork, err))
	}

	slog.Info(fmt.Sprintf("%s - Stored %d/%d %s peers", peersLogPrefix, added, len(nodes.Enrs), subnetwork))
	return added, nil
}
