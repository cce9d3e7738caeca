package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toption/optionscan/internal/domain"
)

func TestRedisStore_GetEmpty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, 15*time.Minute)

	mock.ExpectGet("optionscan:snapshot:equity").RedisNil()
	mock.ExpectExists("optionscan:scanning:equity").SetVal(0)

	snap, state, err := store.Get(context.Background(), domain.MarketEquity)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, StateEmpty, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetScanningWithSnapshot(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, 15*time.Minute)
	store.now = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }

	existing := merge(nil, []string{"A"}, []domain.Opportunity{cspOpp("A", 0.1)}, nil,
		meta(domain.MarketEquity, 1, store.now()), 15*time.Minute)
	payload, err := json.Marshal(existing)
	require.NoError(t, err)

	mock.ExpectGet("optionscan:snapshot:equity").SetVal(string(payload))
	mock.ExpectExists("optionscan:scanning:equity").SetVal(1)

	snap, state, err := store.Get(context.Background(), domain.MarketEquity)
	require.NoError(t, err)
	require.NotNil(t, snap, "stale-while-revalidate: snapshot served during refresh")
	assert.Equal(t, StateScanning, state)
	assert.Len(t, snap.Opportunities, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_MergeBatchWritesMergedSnapshot(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, 15*time.Minute)

	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	prior := merge(nil, []string{"A", "D"},
		[]domain.Opportunity{cspOpp("A", 0.1), cspOpp("D", 0.4)}, nil,
		meta(domain.MarketEquity, 1, at), 15*time.Minute)
	priorPayload, err := json.Marshal(prior)
	require.NoError(t, err)

	fresh := []domain.Opportunity{cspOpp("A", 0.2)}
	expected := merge(prior, []string{"A"}, fresh, nil, meta(domain.MarketEquity, 2, at), 15*time.Minute)
	expectedPayload, err := json.Marshal(expected)
	require.NoError(t, err)

	mock.ExpectGet("optionscan:snapshot:equity").SetVal(string(priorPayload))
	mock.ExpectSet("optionscan:snapshot:equity", expectedPayload, 0).SetVal("OK")

	snap, err := store.MergeBatch(context.Background(), domain.MarketEquity, []string{"A"}, fresh, nil, meta(domain.MarketEquity, 2, at))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "D"}, symbolsOf(snap.Opportunities))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ScanningFlagLifecycle(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, 15*time.Minute)
	ctx := context.Background()

	mock.ExpectSet("optionscan:scanning:index", "1", scanningFlagTTL).SetVal("OK")
	mock.ExpectDel("optionscan:scanning:index").SetVal(1)

	require.NoError(t, store.MarkScanning(ctx, domain.MarketIndex))
	require.NoError(t, store.ClearScanning(ctx, domain.MarketIndex))
	assert.NoError(t, mock.ExpectationsWereMet())
}
