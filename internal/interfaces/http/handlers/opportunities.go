package handlers

import (
	"net/http"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
	httpContracts "github.com/toption/optionscan/internal/http"
)

// Opportunities handles GET /opportunities?marketType=. It serves whatever
// snapshot exists, labeled with state and age; a market with no snapshot
// yet answers 503 with a retry hint because a cold cache is an expected
// transient, not a server fault.
func (h *Handlers) Opportunities(w http.ResponseWriter, r *http.Request) {
	mt, ok := marketTypeParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "marketType must be one of equity, index, futures")
		return
	}

	snap, state, err := h.store.Get(r.Context(), mt)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}

	if snap == nil {
		w.Header().Set("Retry-After", "60")
		message := "no scan data yet for this market"
		if state == cache.StateScanning {
			message = "initial scan in progress"
		}
		h.writeJSON(w, http.StatusServiceUnavailable, httpContracts.ScanPendingResponse{
			Success: false,
			State:   state,
			Message: message,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, httpContracts.OpportunitiesResponse{
		Success: true,
		Data: httpContracts.OpportunitiesData{
			Opportunities: snap.Opportunities,
			ByStrategy:    snap.ByStrategy,
			Trending:      snap.Trending,
			Metadata:      snap.Metadata,
		},
		Source:         "cache",
		State:          state,
		DataAgeSeconds: dataAgeSeconds(snap, h.now()),
	})
}

// MarketScan handles GET /market-scan: filtered, ranked reads over the
// cached snapshot. All filters are optional inclusive bounds.
func (h *Handlers) MarketScan(w http.ResponseWriter, r *http.Request) {
	mt, ok := marketTypeParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "marketType must be one of equity, index, futures")
		return
	}

	spec, err := filterSpecFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, state, err := h.store.Get(r.Context(), mt)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	if snap == nil {
		w.Header().Set("Retry-After", "60")
		h.writeJSON(w, http.StatusServiceUnavailable, httpContracts.ScanPendingResponse{
			Success: false,
			State:   state,
			Message: "no scan data yet for this market",
		})
		return
	}

	results := domain.FilterAndRank(snap.Opportunities, spec)
	h.writeJSON(w, http.StatusOK, httpContracts.MarketScanResponse{
		Success:        true,
		Count:          len(results),
		Results:        results,
		Source:         "cache",
		DataAgeSeconds: dataAgeSeconds(snap, h.now()),
	})
}

func filterSpecFromQuery(r *http.Request) (domain.FilterSpec, error) {
	var spec domain.FilterSpec

	switch strategy := r.URL.Query().Get("strategy"); strategy {
	case "":
	case string(domain.StrategyCashSecuredPut), string(domain.StrategyCoveredCall):
		spec.Strategy = domain.Strategy(strategy)
	default:
		return spec, errBadParam("strategy", "must be csp or covered-call")
	}

	intFields := []struct {
		name string
		dst  *int
	}{
		{"minDTE", &spec.MinDTE},
		{"maxDTE", &spec.MaxDTE},
		{"limit", &spec.Limit},
	}
	for _, f := range intFields {
		v, present, err := intParam(r, f.name)
		if err != nil {
			return spec, errBadParam(f.name, "must be an integer")
		}
		if present {
			*f.dst = v
		}
	}

	floatFields := []struct {
		name string
		dst  *float64
	}{
		{"minROI", &spec.MinROI},
		{"maxROI", &spec.MaxROI},
		{"minPoP", &spec.MinPoP},
		{"maxCapital", &spec.MaxCapital},
	}
	for _, f := range floatFields {
		v, present, err := floatParam(r, f.name)
		if err != nil {
			return spec, errBadParam(f.name, "must be a number")
		}
		if present {
			*f.dst = v
		}
	}

	if v, present, err := intParam(r, "minVolume"); err != nil {
		return spec, errBadParam("minVolume", "must be an integer")
	} else if present {
		spec.MinVolume = int64(v)
	}
	if v, present, err := intParam(r, "minOpenInterest"); err != nil {
		return spec, errBadParam("minOpenInterest", "must be an integer")
	} else if present {
		spec.MinOpenInterest = int64(v)
	}

	return spec, nil
}

type paramError struct {
	name, reason string
}

func (e paramError) Error() string { return "invalid " + e.name + ": " + e.reason }

func errBadParam(name, reason string) error { return paramError{name: name, reason: reason} }
