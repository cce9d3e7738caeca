package cache

import (
	"context"
	"sync"
	"time"

	"github.com/toption/optionscan/internal/domain"
)

// MemoryStore keeps snapshots in process memory. Published snapshots are
// immutable; MergeBatch swaps in a freshly built one under the lock, so
// readers never observe a partial merge.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[domain.MarketType]*Snapshot
	scanning  map[domain.MarketType]bool
	ttl       time.Duration

	now func() time.Time
}

// NewMemoryStore creates an in-process store with the given freshness TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryStore{
		snapshots: make(map[domain.MarketType]*Snapshot),
		scanning:  make(map[domain.MarketType]bool),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, mt domain.MarketType) (*Snapshot, State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshots[mt]
	return snap, deriveState(snap, s.scanning[mt], s.now()), nil
}

// MergeBatch implements Store.
func (s *MemoryStore) MergeBatch(_ context.Context, mt domain.MarketType, batchSymbols []string, fresh, trending []domain.Opportunity, meta Metadata) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := merge(s.snapshots[mt], batchSymbols, fresh, trending, meta, s.ttl)
	s.snapshots[mt] = next
	return next, nil
}

// MarkScanning implements Store.
func (s *MemoryStore) MarkScanning(_ context.Context, mt domain.MarketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning[mt] = true
	return nil
}

// ClearScanning implements Store.
func (s *MemoryStore) ClearScanning(_ context.Context, mt domain.MarketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scanning, mt)
	return nil
}

// ApplyQuote folds a live quote tick into the cached opportunity for the
// contract, rebuilding premium and ROI fields. Snapshots stay copy-on-write:
// the touched market gets a new snapshot with one replaced element. Ticks
// for contracts not in cache are ignored.
func (s *MemoryStore) ApplyQuote(contract string, bid, ask float64, at time.Time) {
	if bid <= 0 || ask <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for mt, snap := range s.snapshots {
		idx := -1
		for i, o := range snap.Opportunities {
			if o.Contract == contract {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		opps := append([]domain.Opportunity(nil), snap.Opportunities...)
		o := opps[idx]
		o.Bid, o.Ask = bid, ask
		o.Premium = (bid + ask) / 2
		if o.Capital > 0 {
			o.ROI = o.Premium * 100 / o.Capital * 100
			o.ROIPerDay = o.ROI / float64(o.DTE)
			o.ROIAnnual = o.ROIPerDay * 365
		}
		o.DataQuality = domain.QualityQuoted
		opps[idx] = o

		next := *snap
		next.Opportunities = opps
		next.ByStrategy = buildShelves(opps)
		if len(snap.Trending) > 0 {
			trending := append([]domain.Opportunity(nil), snap.Trending...)
			for i := range trending {
				if trending[i].Contract == contract {
					trending[i] = o
				}
			}
			next.Trending = trending
		}
		s.snapshots[mt] = &next
		return
	}
}
