// Package network implements the destination actors that answer forwarded
// JSON-RPC messages, and the peer store they share.
package network

import (
	"context"
	"sort"
	"sync"

	"github.com/morezero/portal-node/pkg/peer"
)

// Subnetwork names used as peer store keys.
const (
	SubnetworkOverlay = "overlay"
	SubnetworkHistory = "history"
	SubnetworkState   = "state"
)

// PeerStore keeps the peer records learned per subnetwork. For a node id the
// record with the higher sequence number wins.
type PeerStore interface {
	// Put stores recs and returns how many were inserted or replaced.
	Put(ctx context.Context, subnetwork string, recs []*peer.Record) (int, error)
	// List returns up to limit records ordered by node id; limit <= 0 means all.
	List(ctx context.Context, subnetwork string, limit int) ([]*peer.Record, error)
}

// MemoryPeerStore is an in-process PeerStore.
type MemoryPeerStore struct {
	mu    sync.RWMutex
	peers map[string]map[string]*peer.Record
}

// NewMemoryPeerStore creates an empty store.
func NewMemoryPeerStore() *MemoryPeerStore {
	return &MemoryPeerStore{peers: make(map[string]map[string]*peer.Record)}
}

func (s *MemoryPeerStore) Put(_ context.Context, subnetwork string, recs []*peer.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.peers[subnetwork]
	if !ok {
		bucket = make(map[string]*peer.Record)
		s.peers[subnetwork] = bucket
	}

	changed := 0
	for _, rec := range recs {
		id := rec.NodeID()
		if cur, ok := bucket[id]; ok && cur.Seq() >= rec.Seq() {
			continue
		}
		bucket[id] = rec
		changed++
	}
	return changed, nil
}

func (s *MemoryPeerStore) List(_ context.Context, subnetwork string, limit int) ([]*peer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.peers[subnetwork]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*peer.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, bucket[id])
	}
	return out, nil
}
