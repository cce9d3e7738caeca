// Package telemetry exposes the service's Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	ScanDuration   *prometheus.HistogramVec
	ScansTotal     *prometheus.CounterVec
	ActiveScans    prometheus.Gauge
	TickersScanned *prometheus.CounterVec

	ProviderCalls  *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec

	CachedOpportunities *prometheus.GaugeVec

	HTTPDuration *prometheus.HistogramVec
}

// New builds and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionscan_scan_duration_seconds",
				Help:    "Duration of one batch scan per market type",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 240, 300},
			},
			[]string{"market", "result"},
		),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_scans_total",
				Help: "Completed batch scans by market type and result",
			},
			[]string{"market", "result"},
		),
		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "optionscan_active_scans",
				Help: "Batch scans currently in flight",
			},
		),
		TickersScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_tickers_scanned_total",
				Help: "Tickers fetched and processed, by market type",
			},
			[]string{"market"},
		),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_provider_calls_total",
				Help: "Provider API calls by operation",
			},
			[]string{"op"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionscan_provider_errors_total",
				Help: "Provider failures by operation and class",
			},
			[]string{"op", "class"},
		),

		CachedOpportunities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionscan_cached_opportunities",
				Help: "Opportunities currently held in cache per market type",
			},
			[]string{"market"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionscan_http_request_duration_seconds",
				Help:    "HTTP handler latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.ScanDuration, m.ScansTotal, m.ActiveScans, m.TickersScanned,
		m.ProviderCalls, m.ProviderErrors,
		m.CachedOpportunities,
		m.HTTPDuration,
	)
	return m
}

// Handler returns the /metrics endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
