// Package dispatcher classifies validated JSON-RPC requests and forwards them
// to the destination actors.
package dispatcher

import (
	"fmt"
	"strings"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

// Destination names the actor a request is forwarded to.
type Destination int

const (
	DestinationPortal Destination = iota + 1
	DestinationHistory
	DestinationState
)

func (d Destination) String() string {
	switch d {
	case DestinationPortal:
		return "portal"
	case DestinationHistory:
		return "history"
	case DestinationState:
		return "state"
	default:
		return "unknown"
	}
}

// Route is the outcome of classification. Only the endpoint matching
// Destination is set.
type Route struct {
	Destination Destination
	Portal      jsonrpc.PortalEndpoint
	History     jsonrpc.HistoryEndpoint
	State       jsonrpc.StateEndpoint
}

const (
	historyPrefix = "portalHistory_"
	statePrefix   = "portalState_"
)

var portalMethods = map[string]jsonrpc.PortalEndpoint{
	"discv5_nodeInfo":         jsonrpc.NodeInfo,
	"discv5_routingTableInfo": jsonrpc.RoutingTableInfo,
	"web3_clientVersion":      jsonrpc.ClientVersion,
	"portal_addNodes":         jsonrpc.AddNodes,
}

var subnetworkMethods = map[string]jsonrpc.SubnetworkKind{
	"radius":           jsonrpc.DataRadius,
	"routingTableInfo": jsonrpc.SubnetworkRoutingTable,
	"storeNodes":       jsonrpc.StoreNodes,
}

// Methods lists every method name Classify accepts.
func Methods() []string {
	out := make([]string, 0, len(portalMethods)+2*len(subnetworkMethods))
	for m := range portalMethods {
		out = append(out, m)
	}
	for m := range subnetworkMethods {
		out = append(out, historyPrefix+m, statePrefix+m)
	}
	return out
}

// Classify maps a request to exactly one destination and endpoint. Unknown
// methods fail with CodeMethodNotFound; arguments that a subnetwork selector
// carries are decoded here and fail with CodeInvalidParams.
func Classify(req *jsonrpc.Request) (Route, error) {
	if ep, ok := portalMethods[req.Method]; ok {
		return Route{Destination: DestinationPortal, Portal: ep}, nil
	}

	if name, ok := strings.CutPrefix(req.Method, historyPrefix); ok {
		kind, nodes, err := classifySubnetwork(name, req)
		if err != nil {
			return Route{}, err
		}
		return Route{Destination: DestinationHistory, History: jsonrpc.HistoryEndpoint{Kind: kind, Nodes: nodes}}, nil
	}

	if name, ok := strings.CutPrefix(req.Method, statePrefix); ok {
		kind, nodes, err := classifySubnetwork(name, req)
		if err != nil {
			return Route{}, err
		}
		return Route{Destination: DestinationState, State: jsonrpc.StateEndpoint{Kind: kind, Nodes: nodes}}, nil
	}

	return Route{}, methodNotFound(req.Method)
}

func classifySubnetwork(name string, req *jsonrpc.Request) (jsonrpc.SubnetworkKind, *jsonrpc.NodesParams, error) {
	kind, ok := subnetworkMethods[name]
	if !ok {
		return 0, nil, methodNotFound(req.Method)
	}
	if kind != jsonrpc.StoreNodes {
		return kind, nil, nil
	}

	nodes, err := jsonrpc.DecodeNodesArgument(req.Params)
	if err != nil {
		return 0, nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())
	}
	return kind, nodes, nil
}

func methodNotFound(method string) *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}
