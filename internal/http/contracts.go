// Package http holds the JSON API contracts shared by the server and its
// handlers. Every payload carries `success` so clients can branch without
// inspecting status codes, and cached data is always labeled with its source
// and age instead of posing as live.
package http

import (
	"time"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
)

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// OpportunitiesData is the cached snapshot view served to clients.
type OpportunitiesData struct {
	Opportunities []domain.Opportunity                     `json:"opportunities"`
	ByStrategy    map[domain.Strategy][]domain.Opportunity `json:"byStrategy"`
	Trending      []domain.Opportunity                     `json:"trending"`
	Metadata      cache.Metadata                           `json:"metadata"`
}

// OpportunitiesResponse answers GET /opportunities.
type OpportunitiesResponse struct {
	Success        bool              `json:"success"`
	Data           OpportunitiesData `json:"data"`
	Source         string            `json:"source"`
	State          cache.State       `json:"state"`
	DataAgeSeconds int64             `json:"dataAgeSeconds"`
}

// ScanPendingResponse answers reads against a market with no snapshot yet.
type ScanPendingResponse struct {
	Success bool        `json:"success"`
	State   cache.State `json:"state"`
	Message string      `json:"message"`
}

// MarketScanResponse answers GET /market-scan.
type MarketScanResponse struct {
	Success        bool                 `json:"success"`
	Count          int                  `json:"count"`
	Results        []domain.Opportunity `json:"results"`
	Source         string               `json:"source"`
	DataAgeSeconds int64                `json:"dataAgeSeconds"`
}

// CronScanResponse answers POST /cron/batch-scan.
type CronScanResponse struct {
	Success  bool              `json:"success"`
	Market   domain.MarketType `json:"market,omitempty"`
	Batch    int               `json:"batch,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata *cache.Metadata   `json:"metadata,omitempty"`
}

// CacheStatusResponse answers GET /cache/status. Status is a traffic light:
// green = fresh, amber = aging, red = stale or empty.
type CacheStatusResponse struct {
	Status          string                       `json:"status"`
	LastRefresh     time.Time                    `json:"lastRefresh"`
	DataAgeSeconds  int64                        `json:"dataAgeSeconds"`
	TotalRecords    int                          `json:"totalRecords"`
	RefreshProgress float64                      `json:"refreshProgress"`
	Markets         map[domain.MarketType]string `json:"markets"`
}

// RefreshResponse answers POST /cache/refresh.
type RefreshResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status    string                            `json:"status"`
	Version   string                            `json:"version"`
	Timestamp time.Time                         `json:"timestamp"`
	Cache     map[domain.MarketType]cache.State `json:"cache"`
}
