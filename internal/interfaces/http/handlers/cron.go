package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/toption/optionscan/internal/domain"
	httpContracts "github.com/toption/optionscan/internal/http"
	"github.com/toption/optionscan/internal/scan"
)

// CronBatchScan handles POST /cron/batch-scan?market=&batch=. This is the
// externally triggered entry point for the rolling refresh; it requires the
// cron bearer secret and skips outside trading hours unless forced.
func (h *Handlers) CronBatchScan(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mt, ok := marketTypeParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "market must be one of equity, index, futures")
		return
	}

	batch, present, err := intParam(r, "batch")
	if err != nil || (present && batch < 1) {
		h.writeError(w, http.StatusBadRequest, "batch must be a positive integer")
		return
	}
	if !present {
		batch = 1
	}

	force := r.URL.Query().Get("force") == "true"
	if !force && !scan.MarketOpen(h.now()) {
		h.writeJSON(w, http.StatusOK, httpContracts.CronScanResponse{
			Success: false,
			Market:  mt,
			Batch:   batch,
			Message: "Market closed",
		})
		return
	}

	snap, err := h.scanner.ScanBatch(r.Context(), mt, batch)
	if err != nil {
		log.Error().Err(err).Str("market", string(mt)).Int("batch", batch).Msg("Cron batch scan failed")
		h.writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	h.writeJSON(w, http.StatusOK, httpContracts.CronScanResponse{
		Success:  true,
		Market:   mt,
		Batch:    batch,
		Metadata: &snap.Metadata,
	})
}

// CronCacheWarmup handles POST /cron/cache-warmup: a full refresh of every
// market type, run before the open, so the first readers of the day never
// hit an empty cache. Deliberately ignores the market-hours gate.
func (h *Handlers) CronCacheWarmup(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	for _, mt := range domain.AllMarketTypes {
		if _, err := h.scanner.Refresh(r.Context(), mt); err != nil {
			log.Error().Err(err).Str("market", string(mt)).Msg("Cache warmup failed")
			h.writeError(w, http.StatusInternalServerError, "warmup failed for "+string(mt))
			return
		}
	}

	h.writeJSON(w, http.StatusOK, httpContracts.RefreshResponse{
		Success: true,
		Message: "cache warmed for all markets",
	})
}
