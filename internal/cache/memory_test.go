package cache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toption/optionscan/internal/domain"
)

func cspOpp(symbol string, roiPerDay float64) domain.Opportunity {
	return domain.Opportunity{
		Symbol:      symbol,
		Contract:    "O:" + symbol,
		Strategy:    domain.StrategyCashSecuredPut,
		DTE:         14,
		Premium:     1.5,
		Capital:     9500,
		ROI:         roiPerDay * 14,
		ROIPerDay:   roiPerDay,
		DataQuality: domain.QualityQuoted,
	}
}

func meta(mt domain.MarketType, batch int, at time.Time) Metadata {
	return Metadata{LastScan: at, MarketType: mt, Batch: batch, TotalBatches: 5}
}

func symbolsOf(opps []domain.Opportunity) []string {
	out := make([]string, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.Symbol)
	}
	sort.Strings(out)
	return out
}

func TestMemoryStore_StateMachine(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	snap, state, err := store.Get(ctx, domain.MarketEquity)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, StateEmpty, state)

	// Cold start: scanning with nothing to serve yet.
	require.NoError(t, store.MarkScanning(ctx, domain.MarketEquity))
	snap, state, _ = store.Get(ctx, domain.MarketEquity)
	assert.Nil(t, snap)
	assert.Equal(t, StateScanning, state)

	now := time.Now()
	_, err = store.MergeBatch(ctx, domain.MarketEquity, []string{"A"}, []domain.Opportunity{cspOpp("A", 0.1)}, nil, meta(domain.MarketEquity, 1, now))
	require.NoError(t, err)

	// Refresh in flight: previous snapshot still served, state says scanning.
	snap, state, _ = store.Get(ctx, domain.MarketEquity)
	require.NotNil(t, snap)
	assert.Equal(t, StateScanning, state)

	require.NoError(t, store.ClearScanning(ctx, domain.MarketEquity))
	snap, state, _ = store.Get(ctx, domain.MarketEquity)
	require.NotNil(t, snap)
	assert.Equal(t, StateReady, state)
}

func TestMemoryStore_StaleAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	scannedAt := time.Now().Add(-time.Hour)
	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"A"}, []domain.Opportunity{cspOpp("A", 0.1)}, nil, meta(domain.MarketEquity, 1, scannedAt))
	require.NoError(t, err)

	snap, state, _ := store.Get(ctx, domain.MarketEquity)
	require.NotNil(t, snap, "stale data is still served")
	assert.Equal(t, StateStale, state)
}

func TestMergeBatch_PreservesSymbolsOutsideBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)
	now := time.Now()

	// Prior cache covers A,B,C,D.
	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"A", "B", "C", "D"},
		[]domain.Opportunity{cspOpp("A", 0.1), cspOpp("B", 0.1), cspOpp("C", 0.1), cspOpp("D", 0.4)},
		nil, meta(domain.MarketEquity, 1, now))
	require.NoError(t, err)

	// Rescan of A,B,C with fresher numbers; D must survive untouched.
	fresh := []domain.Opportunity{cspOpp("A", 0.2), cspOpp("B", 0.2), cspOpp("C", 0.2)}
	snap, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"A", "B", "C"}, fresh, nil, meta(domain.MarketEquity, 2, now))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, symbolsOf(snap.Opportunities))
	for _, o := range snap.Opportunities {
		switch o.Symbol {
		case "D":
			assert.InDelta(t, 0.4, o.ROIPerDay, 1e-9, "untouched symbol kept prior data")
		default:
			assert.InDelta(t, 0.2, o.ROIPerDay, 1e-9, "batch symbols replaced")
		}
	}
	assert.Equal(t, 4, snap.Metadata.TotalOpportunities)
}

func TestMergeBatch_DisjointBatchesCommute(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	batchA := []string{"A", "B"}
	oppsA := []domain.Opportunity{cspOpp("A", 0.1), cspOpp("B", 0.2)}
	batchB := []string{"C", "D"}
	oppsB := []domain.Opportunity{cspOpp("C", 0.3), cspOpp("D", 0.4)}

	final := func(firstSyms []string, first []domain.Opportunity, secondSyms []string, second []domain.Opportunity) map[string]domain.Opportunity {
		store := NewMemoryStore(15 * time.Minute)
		_, err := store.MergeBatch(ctx, domain.MarketEquity, firstSyms, first, nil, meta(domain.MarketEquity, 1, now))
		require.NoError(t, err)
		snap, err := store.MergeBatch(ctx, domain.MarketEquity, secondSyms, second, nil, meta(domain.MarketEquity, 2, now))
		require.NoError(t, err)

		bySymbol := make(map[string]domain.Opportunity)
		for _, o := range snap.Opportunities {
			bySymbol[o.Symbol] = o
		}
		return bySymbol
	}

	assert.Equal(t,
		final(batchA, oppsA, batchB, oppsB),
		final(batchB, oppsB, batchA, oppsA))
}

func TestMergeBatch_BuildsStrategyShelves(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	cc := cspOpp("B", 0.3)
	cc.Strategy = domain.StrategyCoveredCall

	snap, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"A", "B"},
		[]domain.Opportunity{cspOpp("A", 0.1), cc}, nil, meta(domain.MarketEquity, 1, time.Now()))
	require.NoError(t, err)

	require.Len(t, snap.ByStrategy[domain.StrategyCashSecuredPut], 1)
	assert.Equal(t, "A", snap.ByStrategy[domain.StrategyCashSecuredPut][0].Symbol)
	require.Len(t, snap.ByStrategy[domain.StrategyCoveredCall], 1)
	assert.Equal(t, "B", snap.ByStrategy[domain.StrategyCoveredCall][0].Symbol)
}

func TestMergeBatch_TrendingMergedLikeOpportunities(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)
	now := time.Now()

	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"A"}, []domain.Opportunity{cspOpp("A", 0.1)},
		[]domain.Opportunity{cspOpp("A", 0.1)}, meta(domain.MarketEquity, 1, now))
	require.NoError(t, err)

	snap, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"B"}, []domain.Opportunity{cspOpp("B", 0.2)},
		[]domain.Opportunity{cspOpp("B", 0.2)}, meta(domain.MarketEquity, 2, now))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B"}, symbolsOf(snap.Trending))
}

func TestApplyQuote_RepricesCachedOpportunity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"AAPL"},
		[]domain.Opportunity{cspOpp("AAPL", 0.1)}, nil, meta(domain.MarketEquity, 1, time.Now()))
	require.NoError(t, err)

	before, _, _ := store.Get(ctx, domain.MarketEquity)

	store.ApplyQuote("O:AAPL", 2.00, 2.20, time.Now())

	after, _, _ := store.Get(ctx, domain.MarketEquity)
	require.NotNil(t, after)
	got := after.Opportunities[0]
	assert.InDelta(t, 2.10, got.Premium, 1e-9)
	assert.InDelta(t, 2.10*100/9500*100, got.ROI, 1e-9)

	// Copy-on-write: the previously returned snapshot is untouched.
	assert.InDelta(t, 1.5, before.Opportunities[0].Premium, 1e-9)
}

func TestApplyQuote_RepricesShelvesAndTrending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	opp := cspOpp("AAPL", 0.1)
	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"AAPL"},
		[]domain.Opportunity{opp}, []domain.Opportunity{opp}, meta(domain.MarketEquity, 1, time.Now()))
	require.NoError(t, err)

	store.ApplyQuote("O:AAPL", 2.00, 2.20, time.Now())

	snap, _, _ := store.Get(ctx, domain.MarketEquity)
	require.NotNil(t, snap)

	// One contract, one premium: the combined list, the strategy shelf, and
	// the trending list must all show the repriced value.
	assert.InDelta(t, 2.10, snap.Opportunities[0].Premium, 1e-9)
	require.Len(t, snap.ByStrategy[domain.StrategyCashSecuredPut], 1)
	assert.InDelta(t, 2.10, snap.ByStrategy[domain.StrategyCashSecuredPut][0].Premium, 1e-9)
	require.Len(t, snap.Trending, 1)
	assert.InDelta(t, 2.10, snap.Trending[0].Premium, 1e-9)
}

func TestApplyQuote_IgnoresUnknownContractAndEmptyQuote(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(15 * time.Minute)

	_, err := store.MergeBatch(ctx, domain.MarketEquity, []string{"AAPL"},
		[]domain.Opportunity{cspOpp("AAPL", 0.1)}, nil, meta(domain.MarketEquity, 1, time.Now()))
	require.NoError(t, err)

	store.ApplyQuote("O:UNKNOWN", 1, 2, time.Now())
	store.ApplyQuote("O:AAPL", 0, 2, time.Now())

	snap, _, _ := store.Get(ctx, domain.MarketEquity)
	assert.InDelta(t, 1.5, snap.Opportunities[0].Premium, 1e-9)
}
