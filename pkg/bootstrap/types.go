// Package bootstrap loads the bootnode list a node seeds its peer store with.
package bootstrap

import (
	"context"

	"github.com/morezero/portal-node/pkg/peer"
)

// BootstrapConfig is the root of a bootstrap file.
//
//	{"name": "mainnet", "version": "1", "bootnodes": {"overlay": ["enr:..."], "history": ["enr:..."]}}
type BootstrapConfig struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Bootnodes map[string][]string `json:"bootnodes"`
}

// PeerWriter stores records for a subnetwork.
type PeerWriter interface {
	Put(ctx context.Context, subnetwork string, recs []*peer.Record) (int, error)
}

// ResolvedBootstrap holds the verified bootnode records per subnetwork.
type ResolvedBootstrap struct {
	name      string
	version   string
	bootnodes map[string][]*peer.Record
}

// Get returns the bootnodes of subnetwork.
func (rb *ResolvedBootstrap) Get(subnetwork string) []*peer.Record {
	return rb.bootnodes[subnetwork]
}

// Subnetworks returns the subnetworks that have at least one bootnode.
func (rb *ResolvedBootstrap) Subnetworks() []string {
	out := make([]string, 0, len(rb.bootnodes))
	for name, recs := range rb.bootnodes {
		if len(recs) > 0 {
			out = append(out, name)
		}
	}
	return out
}

// Name returns the bootstrap config name.
func (rb *ResolvedBootstrap) Name() string {
	return rb.name
}

// Version returns the bootstrap config version.
func (rb *ResolvedBootstrap) Version() string {
	return rb.version
}
