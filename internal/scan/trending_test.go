package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/toption/optionscan/internal/domain"
)

func trendOpp(premium float64, volume int64) domain.Opportunity {
	return domain.Opportunity{
		Symbol:     "AAPL",
		Strike:     220,
		Expiration: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		Premium:    premium,
		Volume:     volume,
	}
}

func TestTrendTracker(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	tracker := newTrendTracker()

	assert.False(t, tracker.Observe(trendOpp(2.00, 100), now), "first sighting never trends")
	assert.False(t, tracker.Observe(trendOpp(2.10, 110), now.Add(5*time.Minute)), "small moves ignored")
	assert.True(t, tracker.Observe(trendOpp(2.60, 110), now.Add(10*time.Minute)), "premium +>20%% trends")

	tracker = newTrendTracker()
	tracker.Observe(trendOpp(2.00, 100), now)
	assert.True(t, tracker.Observe(trendOpp(2.00, 250), now.Add(5*time.Minute)), "volume +>100%% trends")
}

func TestTrendTracker_StaleBaselineIgnored(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	tracker := newTrendTracker()

	tracker.Observe(trendOpp(1.00, 100), now)
	assert.False(t, tracker.Observe(trendOpp(5.00, 900), now.Add(48*time.Hour)),
		"comparison against a baseline older than the history TTL is meaningless")
}

func TestMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		open bool
	}{
		{"weekday mid-session", time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), true}, // Monday
		{"weekday at open", time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC), true},
		{"weekday just before open", time.Date(2026, 3, 2, 13, 29, 0, 0, time.UTC), false},
		{"weekday at close", time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.open, MarketOpen(tc.t), tc.name)
	}
}
