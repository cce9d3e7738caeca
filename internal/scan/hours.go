package scan

import "time"

// US equity options trading window in UTC: 09:30–16:00 ET standard time.
const (
	marketOpenMinuteUTC  = 13*60 + 30
	marketCloseMinuteUTC = 21 * 60
)

// MarketOpen reports whether t falls inside the weekday trading window.
// Cron-triggered scans are skipped outside it; manual refreshes may force
// past the gate.
func MarketOpen(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= marketOpenMinuteUTC && minute < marketCloseMinuteUTC
}
