// Package handlers implements the JSON API endpoints. Handlers translate
// query parameters into cache reads and scanner calls; no uncaught error
// crosses the HTTP boundary unformatted.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
	httpContracts "github.com/toption/optionscan/internal/http"
	"github.com/toption/optionscan/internal/persistence"
	"github.com/toption/optionscan/internal/scan"
)

// BatchScanner is the slice of the scanner the handlers trigger.
type BatchScanner interface {
	ScanBatch(ctx context.Context, mt domain.MarketType, batchNum int) (*cache.Snapshot, error)
	Refresh(ctx context.Context, mt domain.MarketType) (*cache.Snapshot, error)
}

// ScanHistory reads persisted scan runs. Nil when persistence is disabled.
type ScanHistory interface {
	RecentRuns(ctx context.Context, market domain.MarketType, limit int) ([]persistence.ScanRunRow, error)
}

// Config carries handler-level settings.
type Config struct {
	CronSecret string
	Version    string
	CacheTTL   time.Duration
}

// Handlers holds the endpoint implementations and their dependencies.
type Handlers struct {
	store   cache.Store
	scanner BatchScanner
	history ScanHistory
	cfg     Config

	now func() time.Time
}

// New wires the handler set. history may be nil.
func New(store cache.Store, scanner BatchScanner, history ScanHistory, cfg Config) *Handlers {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	return &Handlers{
		store:   store,
		scanner: scanner,
		history: history,
		cfg:     cfg,
		now:     time.Now,
	}
}

// marketTypeParam reads ?marketType= (default equity). The second return is
// false when the value is present but unknown.
func marketTypeParam(r *http.Request) (domain.MarketType, bool) {
	raw := r.URL.Query().Get("marketType")
	if raw == "" {
		raw = r.URL.Query().Get("market")
	}
	if raw == "" {
		return domain.MarketEquity, true
	}
	mt := domain.MarketType(strings.ToLower(raw))
	return mt, mt.Valid()
}

// authorized checks the cron bearer secret in constant time.
func (h *Handlers) authorized(r *http.Request) bool {
	if h.cfg.CronSecret == "" {
		return false
	}
	got := r.Header.Get("Authorization")
	want := "Bearer " + h.cfg.CronSecret
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Response encode failed")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, httpContracts.ErrorResponse{Success: false, Error: message})
}

// NotFound is the router's fallback handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, "unknown endpoint")
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// floatParam parses an optional float query parameter.
func floatParam(r *http.Request, name string) (float64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func dataAgeSeconds(snap *cache.Snapshot, now time.Time) int64 {
	if snap == nil || snap.Metadata.LastScan.IsZero() {
		return 0
	}
	return int64(now.Sub(snap.Metadata.LastScan).Seconds())
}

var _ BatchScanner = (*scan.Scanner)(nil)
var _ ScanHistory = (*persistence.Store)(nil)
