package db

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/portal-node/pkg/peer"
)

const repoLogPrefix = "db:repository"

// Repository is the Postgres peer record store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const upsertPeerSQL = `INSERT INTO peer_records (subnetwork, node_id, seq, enr, created, modified)
 VALUES ($1, $2, $3, $4, $5, $5)
 ON CONFLICT (subnetwork, node_id) DO UPDATE SET
   seq = EXCLUDED.seq,
   enr = EXCLUDED.enr,
   modified = EXCLUDED.modified
 WHERE peer_records.seq < EXCLUDED.seq`

// Put upserts recs for subnetwork in one batch. An existing row is only
// replaced by a record with a higher sequence number.
func (r *Repository) Put(ctx context.Context, subnetwork string, recs []*peer.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	slog.Debug(fmt.Sprintf("%s - Put subnetwork=%s count=%d", repoLogPrefix, subnetwork, len(recs)))

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(upsertPeerSQL, subnetwork, rec.NodeID(), seqParam(rec.Seq()), rec.String(), now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	changed := 0
	for range recs {
		tag, err := br.Exec()
		if err != nil {
			return changed, fmt.Errorf("%s - failed to upsert peer: %w", repoLogPrefix, err)
		}
		changed += int(tag.RowsAffected())
	}
	return changed, nil
}

// List returns up to limit records of subnetwork ordered by node id; limit <=
// 0 means all.
func (r *Repository) List(ctx context.Context, subnetwork string, limit int) ([]*peer.Record, error) {
	var limitParam *int
	if limit > 0 {
		limitParam = &limit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT enr FROM peer_records
		 WHERE subnetwork = $1
		 ORDER BY node_id
		 LIMIT $2`, subnetwork, limitParam)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to list peers: %w", repoLogPrefix, err)
	}

	texts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan peers: %w", repoLogPrefix, err)
	}

	out := make([]*peer.Record, 0, len(texts))
	for _, text := range texts {
		rec, err := peer.Parse(text)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - skipping stored record that no longer verifies: %v", repoLogPrefix, err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored records of subnetwork.
func (r *Repository) Count(ctx context.Context, subnetwork string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM peer_records WHERE subnetwork = $1`, subnetwork).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s - failed to count peers: %w", repoLogPrefix, err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// seqParam maps a record sequence number onto BIGINT. Values beyond the
// signed range saturate.
func seqParam(seq uint64) int64 {
	if seq > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(seq)
}
