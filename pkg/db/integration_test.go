//go:build integration

package db

import (
	"context"
	"crypto/ecdsa"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/morezero/portal-node/pkg/peer"
	"github.com/morezero/portal-node/pkg/peer/peertest"
)

const dbIntegrationPrefix = "db:integration_test"

// testDBEnv returns the database URL for integration tests; skips the test if not set.
func testDBEnv(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("db:integration_test - DATABASE_URL not set, skipping")
	}
	return url
}

// setupIntegrationDB creates a pool, runs migrations, and returns repo and cleanup.
func setupIntegrationDB(t *testing.T) (ctx context.Context, repo *Repository, cleanup func()) {
	t.Helper()
	ctx = context.Background()
	url := testDBEnv(t)

	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", dbIntegrationPrefix, err)
	}

	fsys := afero.NewOsFs()
	migrationPath := "migrations"
	if ok, _ := afero.DirExists(fsys, migrationPath); !ok {
		migrationPath = filepath.Join("..", "..", "migrations")
	}
	migrations, err := LoadMigrationFiles(fsys, migrationPath)
	if err != nil {
		pool.Close()
		t.Fatalf("%s - LoadMigrationFiles failed: %v", dbIntegrationPrefix, err)
	}
	if err := RunMigrations(ctx, pool, migrations); err != nil {
		pool.Close()
		t.Fatalf("%s - RunMigrations failed: %v", dbIntegrationPrefix, err)
	}

	repo = NewRepository(pool)
	cleanup = func() { pool.Close() }
	return ctx, repo, cleanup
}

// uniqueSubnetwork keeps tests isolated without truncating the table.
func uniqueSubnetwork() string {
	return "it-" + uuid.NewString()
}

func signed(t *testing.T, key *ecdsa.PrivateKey, seq uint64) *peer.Record {
	t.Helper()
	rec, err := peer.NewLocal(key, seq, net.IPv4(10, 0, 0, 2), 9000)
	if err != nil {
		t.Fatalf("%s - NewLocal failed: %v", dbIntegrationPrefix, err)
	}
	return rec
}

func TestIntegration_PutAndList(t *testing.T) {
	ctx, repo, cleanup := setupIntegrationDB(t)
	defer cleanup()

	sub := uniqueSubnetwork()
	recs := []*peer.Record{peertest.Record(t), peertest.Record(t), peertest.Record(t)}

	n, err := repo.Put(ctx, sub, recs)
	if err != nil {
		t.Fatalf("%s - Put failed: %v", dbIntegrationPrefix, err)
	}
	if n != 3 {
		t.Errorf("%s - Put changed %d, want 3", dbIntegrationPrefix, n)
	}

	got, err := repo.List(ctx, sub, 0)
	if err != nil {
		t.Fatalf("%s - List failed: %v", dbIntegrationPrefix, err)
	}
	if len(got) != 3 {
		t.Fatalf("%s - List returned %d, want 3", dbIntegrationPrefix, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].NodeID() > got[i].NodeID() {
			t.Errorf("%s - List not ordered by node id", dbIntegrationPrefix)
		}
	}

	limited, err := repo.List(ctx, sub, 2)
	if err != nil {
		t.Fatalf("%s - List with limit failed: %v", dbIntegrationPrefix, err)
	}
	if len(limited) != 2 {
		t.Errorf("%s - List limit 2 returned %d", dbIntegrationPrefix, len(limited))
	}

	count, err := repo.Count(ctx, sub)
	if err != nil {
		t.Fatalf("%s - Count failed: %v", dbIntegrationPrefix, err)
	}
	if count != 3 {
		t.Errorf("%s - Count = %d, want 3", dbIntegrationPrefix, count)
	}
}

func TestIntegration_HigherSeqWins(t *testing.T) {
	ctx, repo, cleanup := setupIntegrationDB(t)
	defer cleanup()

	sub := uniqueSubnetwork()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("%s - GenerateKey failed: %v", dbIntegrationPrefix, err)
	}
	older, newer := signed(t, key, 1), signed(t, key, 2)

	if n, err := repo.Put(ctx, sub, []*peer.Record{newer}); err != nil || n != 1 {
		t.Fatalf("%s - Put newer = %d, %v", dbIntegrationPrefix, n, err)
	}
	if n, err := repo.Put(ctx, sub, []*peer.Record{older}); err != nil || n != 0 {
		t.Errorf("%s - Put older = %d, %v; want 0, nil", dbIntegrationPrefix, n, err)
	}

	got, err := repo.List(ctx, sub, 0)
	if err != nil {
		t.Fatalf("%s - List failed: %v", dbIntegrationPrefix, err)
	}
	if len(got) != 1 || got[0].Seq() != 2 {
		t.Errorf("%s - expected the seq 2 record to remain, got %v", dbIntegrationPrefix, got)
	}
}

func TestIntegration_PutEmpty(t *testing.T) {
	ctx, repo, cleanup := setupIntegrationDB(t)
	defer cleanup()

	n, err := repo.Put(ctx, uniqueSubnetwork(), nil)
	if err != nil || n != 0 {
		t.Errorf("%s - Put(nil) = %d, %v", dbIntegrationPrefix, n, err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("%s - Ping failed: %v", dbIntegrationPrefix, err)
	}
}

func TestIntegration_MigrationStatus(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, testDBEnv(t))
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", dbIntegrationPrefix, err)
	}
	defer pool.Close()

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "m/001.sql", []byte("SELECT 1"), 0o644); err != nil {
		t.Fatalf("%s - write: %v", dbIntegrationPrefix, err)
	}

	var out strings.Builder
	if err := MigrationStatus(ctx, pool, fsys, "m", &out); err != nil {
		t.Fatalf("%s - MigrationStatus failed: %v", dbIntegrationPrefix, err)
	}
	if out.Len() == 0 {
		t.Errorf("%s - expected status output", dbIntegrationPrefix)
	}
}
