package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
	httpContracts "github.com/toption/optionscan/internal/http"
)

// CacheStatus handles GET /cache/status: a traffic-light summary across all
// market types for dashboards and uptime checks.
func (h *Handlers) CacheStatus(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	var (
		lastRefresh  time.Time
		totalRecords int
		progress     float64
		markets      = make(map[domain.MarketType]string, len(domain.AllMarketTypes))
		anySnapshot  bool
	)

	for _, mt := range domain.AllMarketTypes {
		snap, state, err := h.store.Get(r.Context(), mt)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "cache read failed")
			return
		}
		markets[mt] = string(state)
		if snap == nil {
			continue
		}
		anySnapshot = true
		totalRecords += snap.Metadata.TotalOpportunities
		if snap.Metadata.LastScan.After(lastRefresh) {
			lastRefresh = snap.Metadata.LastScan
			if snap.Metadata.TotalBatches > 0 {
				progress = float64(snap.Metadata.Batch) / float64(snap.Metadata.TotalBatches) * 100
			}
		}
	}

	status := "red"
	var age int64
	if anySnapshot {
		ageDur := now.Sub(lastRefresh)
		age = int64(ageDur.Seconds())
		switch {
		case ageDur <= h.cfg.CacheTTL:
			status = "green"
		case ageDur <= 2*h.cfg.CacheTTL:
			status = "amber"
		}
	}

	h.writeJSON(w, http.StatusOK, httpContracts.CacheStatusResponse{
		Status:          status,
		LastRefresh:     lastRefresh,
		DataAgeSeconds:  age,
		TotalRecords:    totalRecords,
		RefreshProgress: progress,
		Markets:         markets,
	})
}

// CacheRefresh handles POST /cache/refresh: kicks off a full refresh of one
// market (or all) in the background and returns immediately. The scanner's
// single-flight gate makes repeated triggers harmless.
func (h *Handlers) CacheRefresh(w http.ResponseWriter, r *http.Request) {
	mt, ok := marketTypeParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "marketType must be one of equity, index, futures")
		return
	}

	targets := []domain.MarketType{mt}
	if r.URL.Query().Get("marketType") == "" && r.URL.Query().Get("market") == "" {
		targets = domain.AllMarketTypes
	}

	go func() {
		ctx := context.Background()
		for _, target := range targets {
			if _, err := h.scanner.Refresh(ctx, target); err != nil {
				log.Error().Err(err).Str("market", string(target)).Msg("Manual refresh failed")
			}
		}
	}()

	h.writeJSON(w, http.StatusAccepted, httpContracts.RefreshResponse{
		Success: true,
		Message: "refresh started",
	})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	states := make(map[domain.MarketType]cache.State, len(domain.AllMarketTypes))
	for _, mt := range domain.AllMarketTypes {
		_, state, err := h.store.Get(r.Context(), mt)
		if err != nil {
			state = cache.StateEmpty
		}
		states[mt] = state
	}

	h.writeJSON(w, http.StatusOK, httpContracts.HealthResponse{
		Status:    "ok",
		Version:   h.cfg.Version,
		Timestamp: h.now().UTC(),
		Cache:     states,
	})
}
