// Package journal records one row per applied index message in PostgreSQL so
// operators can audit what each node applied and which shards it touched.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
)

const (
	StatusApplied = "APPLIED"
	StatusFailed  = "FAILED"
)

// Schema creates the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS index_journal (
	id          BIGSERIAL PRIMARY KEY,
	version     TEXT        NOT NULL,
	operations  INTEGER     NOT NULL,
	shards      INTEGER[]   NOT NULL,
	status      TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertEntry = `INSERT INTO index_journal (version, operations, shards, status, error)
VALUES ($1, $2, $3, $4, $5)`

// Execer is the subset of *sql.DB the journal writes through.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Entry is one applied message.
type Entry struct {
	Version    string
	Operations int
	Shards     []int
	Status     string
	Err        string
}

type Journal struct {
	db      Execer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a journal writing through db. A nil db yields a journal whose
// Record is a no-op.
func New(db Execer, m *metrics.Metrics) *Journal {
	return &Journal{
		db:      db,
		metrics: m,
		logger:  slog.Default().With("component", "journal"),
	}
}

func (j *Journal) Enabled() bool {
	return j != nil && j.db != nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	if _, err := j.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating index_journal: %w", err)
	}
	return nil
}

// Record inserts e. The journal is best effort: a failed insert is logged
// and counted, never retried, and never fails the apply it describes.
func (j *Journal) Record(ctx context.Context, e Entry) {
	if !j.Enabled() {
		return
	}
	shards := make([]int64, len(e.Shards))
	for i, s := range e.Shards {
		shards[i] = int64(s)
	}
	_, err := j.db.ExecContext(ctx, insertEntry, e.Version, e.Operations, pq.Array(shards), e.Status, e.Err)
	if err != nil {
		j.metrics.JournalWrite("error")
		j.logger.Warn("failed to record journal entry",
			"version", e.Version,
			"status", e.Status,
			"error", err,
		)
		return
	}
	j.metrics.JournalWrite("ok")
}
