// Package cache stores scan snapshots per market type and serves them to
// readers with stale-while-revalidate semantics. Two implementations exist:
// an in-process copy-on-write store and a Redis-backed store for a shared
// consistency boundary across instances.
package cache

import (
	"context"
	"time"

	"github.com/toption/optionscan/internal/domain"
)

// State is the lifecycle of a market type's cache entry.
type State string

const (
	StateEmpty    State = "empty"
	StateScanning State = "scanning"
	StateReady    State = "ready"
	StateStale    State = "stale"
)

// Metadata describes the scan that produced (or last touched) a snapshot.
type Metadata struct {
	LastScan           time.Time         `json:"last_scan"`
	MarketType         domain.MarketType `json:"market_type"`
	Batch              int               `json:"batch"`
	TotalBatches       int               `json:"total_batches"`
	TickersScanned     int               `json:"tickers_scanned"`
	TotalOpportunities int               `json:"total_opportunities"`
	ScanDurationMS     int64             `json:"scan_duration_ms"`
}

// Snapshot is an immutable view of one market type's opportunities. Stores
// must never mutate a snapshot after publishing it; merges build new ones.
type Snapshot struct {
	Opportunities []domain.Opportunity                     `json:"opportunities"`
	ByStrategy    map[domain.Strategy][]domain.Opportunity `json:"by_strategy"`
	Trending      []domain.Opportunity                     `json:"trending"`
	Metadata      Metadata                                 `json:"metadata"`
	ExpiresAt     time.Time                                `json:"expires_at"`
}

// Store is the snapshot cache contract shared by the memory and Redis
// implementations. Writers are expected to be single-flighted per market
// type by the scanner; stores themselves are last-writer-wins.
type Store interface {
	// Get returns the current snapshot (nil when none exists) and the
	// derived cache state for the market type.
	Get(ctx context.Context, mt domain.MarketType) (*Snapshot, State, error)

	// MergeBatch folds a completed batch into the market's snapshot:
	// opportunities for symbols inside the batch are replaced, everything
	// else is carried over untouched.
	MergeBatch(ctx context.Context, mt domain.MarketType, batchSymbols []string, fresh, trending []domain.Opportunity, meta Metadata) (*Snapshot, error)

	// MarkScanning and ClearScanning bracket an in-flight scan so readers
	// can distinguish "cold start" from "refresh under way".
	MarkScanning(ctx context.Context, mt domain.MarketType) error
	ClearScanning(ctx context.Context, mt domain.MarketType) error
}

// byStrategyLimit caps each per-strategy shelf; the combined list keeps
// everything the scan produced.
const byStrategyLimit = 50

// merge builds the successor snapshot from prev and a completed batch.
// Symbols in batchSymbols are authoritative in fresh; prior opportunities
// for symbols outside the batch survive unchanged. Disjoint batches
// therefore merge commutatively.
func merge(prev *Snapshot, batchSymbols []string, fresh, trending []domain.Opportunity, meta Metadata, ttl time.Duration) *Snapshot {
	inBatch := make(map[string]struct{}, len(batchSymbols))
	for _, s := range batchSymbols {
		inBatch[s] = struct{}{}
	}

	var kept, keptTrending []domain.Opportunity
	if prev != nil {
		for _, o := range prev.Opportunities {
			if _, ok := inBatch[o.Symbol]; !ok {
				kept = append(kept, o)
			}
		}
		for _, o := range prev.Trending {
			if _, ok := inBatch[o.Symbol]; !ok {
				keptTrending = append(keptTrending, o)
			}
		}
	}

	merged := make([]domain.Opportunity, 0, len(kept)+len(fresh))
	merged = append(merged, kept...)
	merged = append(merged, fresh...)

	mergedTrending := make([]domain.Opportunity, 0, len(keptTrending)+len(trending))
	mergedTrending = append(mergedTrending, keptTrending...)
	mergedTrending = append(mergedTrending, trending...)

	meta.TotalOpportunities = len(merged)
	return &Snapshot{
		Opportunities: merged,
		ByStrategy:    buildShelves(merged),
		Trending:      mergedTrending,
		Metadata:      meta,
		ExpiresAt:     meta.LastScan.Add(ttl),
	}
}

// buildShelves ranks the combined list into capped per-strategy views. Any
// write that touches opportunities must rebuild the shelves so the combined
// list and the per-strategy views never disagree about the same contract.
func buildShelves(opps []domain.Opportunity) map[domain.Strategy][]domain.Opportunity {
	shelves := make(map[domain.Strategy][]domain.Opportunity, 2)
	for _, strategy := range []domain.Strategy{domain.StrategyCashSecuredPut, domain.StrategyCoveredCall} {
		shelves[strategy] = domain.FilterAndRank(opps, domain.FilterSpec{
			Strategy: strategy,
			Limit:    byStrategyLimit,
		})
	}
	return shelves
}

// deriveState maps snapshot presence, the scanning flag, and age to the
// cache state machine: empty → scanning → ready → stale → scanning.
func deriveState(snap *Snapshot, scanning bool, now time.Time) State {
	switch {
	case snap == nil && scanning:
		return StateScanning
	case snap == nil:
		return StateEmpty
	case scanning:
		return StateScanning
	case now.After(snap.ExpiresAt):
		return StateStale
	default:
		return StateReady
	}
}
