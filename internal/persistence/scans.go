// Package persistence stores scan-run history in Postgres. It is optional:
// without a DSN the service runs cache-only and nothing here is touched.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/toption/optionscan/internal/domain"
	"github.com/toption/optionscan/internal/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id             BIGSERIAL PRIMARY KEY,
	market         TEXT        NOT NULL,
	batch          INT         NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	duration_ms    BIGINT      NOT NULL,
	tickers        INT         NOT NULL,
	opportunities  INT         NOT NULL,
	error          TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS scan_runs_market_started_idx ON scan_runs (market, started_at DESC);
`

// ScanRunRow is one persisted scan run.
type ScanRunRow struct {
	ID            int64     `db:"id" json:"id"`
	Market        string    `db:"market" json:"market"`
	Batch         int       `db:"batch" json:"batch"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	DurationMS    int64     `db:"duration_ms" json:"duration_ms"`
	Tickers       int       `db:"tickers" json:"tickers"`
	Opportunities int       `db:"opportunities" json:"opportunities"`
	Error         string    `db:"error" json:"error,omitempty"`
}

// Store implements scan.Recorder on Postgres.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and prepares the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection, e.g. a test mock.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the scan_runs table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordScan implements scan.Recorder.
func (s *Store) RecordScan(ctx context.Context, run scan.ScanRun) error {
	const q = `INSERT INTO scan_runs (market, batch, started_at, duration_ms, tickers, opportunities, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.db.ExecContext(ctx, q,
		string(run.Market), run.Batch, run.StartedAt, run.Duration.Milliseconds(),
		run.Tickers, run.Opportunities, run.Error,
	); err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs for a market, most recent first.
func (s *Store) RecentRuns(ctx context.Context, market domain.MarketType, limit int) ([]ScanRunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id, market, batch, started_at, duration_ms, tickers, opportunities, error
		FROM scan_runs WHERE market = $1 ORDER BY started_at DESC LIMIT $2`

	var rows []ScanRunRow
	if err := s.db.SelectContext(ctx, &rows, q, string(market), limit); err != nil {
		return nil, fmt.Errorf("select scan runs: %w", err)
	}
	return rows, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
