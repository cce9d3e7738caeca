package scan

import (
	"fmt"
	"sync"
	"time"

	"github.com/toption/optionscan/internal/domain"
)

const (
	// A contract is trending when its premium moved 20% or its volume
	// doubled since the previous scan of the same contract.
	trendPremiumPct = 20.0
	trendVolumePct  = 100.0

	// trendHistoryTTL bounds how long old observations are compared
	// against; a week-old baseline says nothing about today's move.
	trendHistoryTTL = 24 * time.Hour
)

type trendObservation struct {
	premium float64
	volume  int64
	at      time.Time
}

// trendTracker remembers the previous scan's premium and volume per
// contract and flags outsized moves between consecutive scans.
type trendTracker struct {
	mu   sync.Mutex
	prev map[string]trendObservation
}

func newTrendTracker() *trendTracker {
	return &trendTracker{prev: make(map[string]trendObservation)}
}

// Observe records the opportunity and reports whether it qualifies as
// trending relative to its previous observation. First sightings never
// trend; there is nothing to compare against.
func (t *trendTracker) Observe(opp domain.Opportunity, now time.Time) bool {
	key := fmt.Sprintf("%s_%.2f_%s", opp.Symbol, opp.Strike, opp.Expiration.Format("2006-01-02"))

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.prev[key]
	t.prev[key] = trendObservation{premium: opp.Premium, volume: opp.Volume, at: now}

	if !seen || now.Sub(prev.at) > trendHistoryTTL {
		return false
	}

	if prev.premium > 0 {
		change := (opp.Premium - prev.premium) / prev.premium * 100
		if change > trendPremiumPct {
			return true
		}
	}
	if prev.volume > 0 {
		change := float64(opp.Volume-prev.volume) / float64(prev.volume) * 100
		if change > trendVolumePct {
			return true
		}
	}
	return false
}
