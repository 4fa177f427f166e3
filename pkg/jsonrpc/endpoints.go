package jsonrpc

// PortalEndpoint selects an operation on the general overlay actor.
type PortalEndpoint int

const (
	NodeInfo PortalEndpoint = iota + 1
	RoutingTableInfo
	ClientVersion
	AddNodes
)

var portalEndpointNames = map[PortalEndpoint]string{
	NodeInfo:         "nodeInfo",
	RoutingTableInfo: "routingTableInfo",
	ClientVersion:    "clientVersion",
	AddNodes:         "addNodes",
}

func (e PortalEndpoint) String() string {
	if name, ok := portalEndpointNames[e]; ok {
		return name
	}
	return "unknown"
}

// SubnetworkKind selects an operation on a history or state actor.
type SubnetworkKind int

const (
	DataRadius SubnetworkKind = iota + 1
	SubnetworkRoutingTable
	StoreNodes
)

var subnetworkKindNames = map[SubnetworkKind]string{
	DataRadius:             "radius",
	SubnetworkRoutingTable: "routingTableInfo",
	StoreNodes:             "storeNodes",
}

func (k SubnetworkKind) String() string {
	if name, ok := subnetworkKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HistoryEndpoint selects a history network operation. Arguments travel in
// the selector; history requests do not carry raw params.
type HistoryEndpoint struct {
	Kind  SubnetworkKind
	Nodes *NodesParams
}

// StateEndpoint selects a state network operation.
type StateEndpoint struct {
	Kind  SubnetworkKind
	Nodes *NodesParams
}
