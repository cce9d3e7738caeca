package handlers

import (
	"net/http"

	"github.com/toption/optionscan/internal/persistence"
)

type scanHistoryResponse struct {
	Success bool                     `json:"success"`
	Runs    []persistence.ScanRunRow `json:"runs"`
}

// RecentScans handles GET /scans/recent?marketType=&limit=. Available only
// when scan-history persistence is configured.
func (h *Handlers) RecentScans(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "scan history is not enabled")
		return
	}

	mt, ok := marketTypeParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "marketType must be one of equity, index, futures")
		return
	}

	limit, _, err := intParam(r, "limit")
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	runs, err := h.history.RecentRuns(r.Context(), mt, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "scan history read failed")
		return
	}

	h.writeJSON(w, http.StatusOK, scanHistoryResponse{Success: true, Runs: runs})
}
