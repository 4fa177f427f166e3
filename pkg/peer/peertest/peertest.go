// Package peertest builds signed node records for tests.
package peertest

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/morezero/portal-node/pkg/peer"
)

// Record returns a freshly signed record for a random key.
func Record(tb testing.TB) *peer.Record {
	tb.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		tb.Fatalf("peertest - generate key: %v", err)
	}
	rec, err := peer.NewLocal(key, 1, net.IPv4(10, 0, 0, 1), 9000)
	if err != nil {
		tb.Fatalf("peertest - sign record: %v", err)
	}
	return rec
}

// JSON returns the record as a JSON string value.
func JSON(tb testing.TB, rec *peer.Record) json.RawMessage {
	tb.Helper()

	data, err := json.Marshal(rec)
	if err != nil {
		tb.Fatalf("peertest - marshal record: %v", err)
	}
	return data
}
