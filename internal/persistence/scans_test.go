package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toption/optionscan/internal/domain"
	"github.com/toption/optionscan/internal/scan"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRecordScan(t *testing.T) {
	store, mock := mockStore(t)
	startedAt := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO scan_runs").
		WithArgs("equity", 2, startedAt, int64(42000), 40, 310, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordScan(context.Background(), scan.ScanRun{
		Market:        domain.MarketEquity,
		Batch:         2,
		StartedAt:     startedAt,
		Duration:      42 * time.Second,
		Tickers:       40,
		Opportunities: 310,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentRuns(t *testing.T) {
	store, mock := mockStore(t)
	startedAt := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "market", "batch", "started_at", "duration_ms", "tickers", "opportunities", "error"}).
		AddRow(2, "equity", 2, startedAt, 42000, 40, 310, "").
		AddRow(1, "equity", 1, startedAt.Add(-5*time.Minute), 39000, 40, 290, "")

	mock.ExpectQuery("SELECT id, market, batch").
		WithArgs("equity", 20).
		WillReturnRows(rows)

	got, err := store.RecentRuns(context.Background(), domain.MarketEquity, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, 310, got[0].Opportunities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordScan_PropagatesError(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("INSERT INTO scan_runs").
		WillReturnError(assert.AnError)

	err := store.RecordScan(context.Background(), scan.ScanRun{Market: domain.MarketIndex, Batch: 1})
	assert.Error(t, err)
}
