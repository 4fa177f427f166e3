// Package events defines the peer discovery events and their publishers.
package events

// PeersDiscoveredEvent is emitted when a batch of peer records has been
// stored for a subnetwork.
type PeersDiscoveredEvent struct {
	Subnetwork string   `json:"subnetwork"`
	NodeIDs    []string `json:"nodeIds"`
	Enrs       []string `json:"enrs"`
	Added      int      `json:"added"`
	Total      uint8    `json:"total"`
	Timestamp  string   `json:"timestamp"`
}
