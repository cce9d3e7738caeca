// Package scan is the single batch-scan pipeline: fetch underlying price
// and option chain, compute opportunities, merge the batch into the cache.
// It replaces what used to be several drifting scanner variants with one
// parameterized path.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
	"github.com/toption/optionscan/internal/provider/polygon"
	"github.com/toption/optionscan/internal/telemetry"
	"github.com/toption/optionscan/internal/universe"
)

// Provider is the slice of the market-data client the scanner needs.
type Provider interface {
	PreviousClose(ctx context.Context, symbol string) (domain.Underlying, error)
	OptionChain(ctx context.Context, underlying string) ([]domain.OptionContract, error)
}

// Recorder persists scan-run history. Optional; a nil recorder disables it.
type Recorder interface {
	RecordScan(ctx context.Context, run ScanRun) error
}

// ScanRun summarizes one completed (or failed) batch scan.
type ScanRun struct {
	Market        domain.MarketType
	Batch         int
	StartedAt     time.Time
	Duration      time.Duration
	Tickers       int
	Opportunities int
	Error         string
}

// Config tunes the pipeline's pre-filters and runtime budget.
type Config struct {
	// MinOpenInterest drops illiquid contracts before calculation.
	MinOpenInterest int64
	// MaxDTE drops far-dated contracts before calculation.
	MaxDTE int
	// MaxScanDuration is the wall-clock budget for one batch. The loop
	// checks it before every ticker fetch and aborts gracefully, merging
	// what it completed, instead of being killed mid-write.
	MaxScanDuration time.Duration
}

// DefaultConfig mirrors the production pre-filters: open interest ≥ 10,
// DTE ≤ 60, and a budget safely under a 300s invocation limit.
func DefaultConfig() Config {
	return Config{
		MinOpenInterest: 10,
		MaxDTE:          60,
		MaxScanDuration: 270 * time.Second,
	}
}

// Scanner runs batch scans. Concurrent calls for the same market type are
// collapsed by a single-flight group, so overlapping cron ticks cannot race
// the merge step.
type Scanner struct {
	provider Provider
	store    cache.Store
	universe *universe.Manager
	calc     *domain.Calculator
	cfg      Config
	metrics  *telemetry.Metrics
	recorder Recorder
	trend    *trendTracker

	group singleflight.Group
	now   func() time.Time
}

// New wires a scanner. metrics and recorder may be nil.
func New(p Provider, store cache.Store, um *universe.Manager, calc *domain.Calculator, cfg Config, metrics *telemetry.Metrics, recorder Recorder) *Scanner {
	if calc == nil {
		calc = domain.NewCalculator(nil)
	}
	if cfg.MaxScanDuration <= 0 {
		cfg.MaxScanDuration = 270 * time.Second
	}
	return &Scanner{
		provider: p,
		store:    store,
		universe: um,
		calc:     calc,
		cfg:      cfg,
		metrics:  metrics,
		recorder: recorder,
		trend:    newTrendTracker(),
		now:      time.Now,
	}
}

// ScanBatch scans the batchNum'th partition of the market's universe and
// merges the results. Duplicate concurrent calls for the same market type
// share one execution and one result.
func (s *Scanner) ScanBatch(ctx context.Context, mt domain.MarketType, batchNum int) (*cache.Snapshot, error) {
	v, err, shared := s.group.Do(string(mt), func() (interface{}, error) {
		return s.scanBatch(ctx, mt, batchNum)
	})
	if shared {
		log.Debug().Str("market", string(mt)).Msg("Scan joined in-flight execution")
	}
	if err != nil {
		return nil, err
	}
	return v.(*cache.Snapshot), nil
}

// Refresh scans every batch of the market type back to back. Used by manual
// refresh and warmup; each batch still goes through the single-flight gate.
func (s *Scanner) Refresh(ctx context.Context, mt domain.MarketType) (*cache.Snapshot, error) {
	var snap *cache.Snapshot
	var err error
	for batch := 1; batch <= s.universe.TotalBatches(); batch++ {
		snap, err = s.ScanBatch(ctx, mt, batch)
		if err != nil {
			return snap, fmt.Errorf("refresh %s batch %d: %w", mt, batch, err)
		}
	}
	return snap, nil
}

func (s *Scanner) scanBatch(ctx context.Context, mt domain.MarketType, batchNum int) (*cache.Snapshot, error) {
	start := s.now()
	deadline := start.Add(s.cfg.MaxScanDuration)
	symbols := s.universe.Batch(mt, batchNum)

	log.Info().Str("market", string(mt)).Int("batch", batchNum).
		Int("tickers", len(symbols)).Msg("Batch scan starting")

	if s.metrics != nil {
		s.metrics.ActiveScans.Inc()
		defer s.metrics.ActiveScans.Dec()
	}

	if err := s.store.MarkScanning(ctx, mt); err != nil {
		log.Warn().Err(err).Str("market", string(mt)).Msg("Could not mark cache scanning")
	}
	defer func() {
		if err := s.store.ClearScanning(context.WithoutCancel(ctx), mt); err != nil {
			log.Warn().Err(err).Str("market", string(mt)).Msg("Could not clear cache scanning flag")
		}
	}()

	var opportunities, trending []domain.Opportunity
	scanned := 0
	scannedSymbols := make([]string, 0, len(symbols))

	for i, symbol := range symbols {
		if s.now().After(deadline) {
			log.Warn().Str("market", string(mt)).Int("completed", i).Int("total", len(symbols)).
				Msg("Scan budget exhausted, merging partial batch")
			break
		}
		if ctx.Err() != nil {
			log.Warn().Str("market", string(mt)).Msg("Scan cancelled, merging partial batch")
			break
		}

		opps, err := s.scanTicker(ctx, symbol)
		if err != nil {
			s.logTickerError(mt, symbol, err)
			continue
		}
		scanned++
		// Only symbols we actually completed become authoritative in the
		// merge; symbols we skipped keep their previous cache entries.
		scannedSymbols = append(scannedSymbols, symbol)

		for _, opp := range opps {
			opportunities = append(opportunities, opp)
			if s.trend.Observe(opp, s.now()) {
				trending = append(trending, opp)
			}
		}
		if len(opps) > 0 {
			log.Debug().Str("symbol", symbol).Int("opportunities", len(opps)).Msg("Ticker scanned")
		}
	}

	duration := s.now().Sub(start)
	meta := cache.Metadata{
		LastScan:       s.now(),
		MarketType:     mt,
		Batch:          batchNum,
		TotalBatches:   s.universe.TotalBatches(),
		TickersScanned: scanned,
		ScanDurationMS: duration.Milliseconds(),
	}

	snap, err := s.store.MergeBatch(ctx, mt, scannedSymbols, opportunities, trending, meta)
	s.observeScan(ctx, mt, batchNum, start, duration, scanned, len(opportunities), err)
	if err != nil {
		return nil, fmt.Errorf("merge %s batch %d: %w", mt, batchNum, err)
	}
	if s.metrics != nil {
		s.metrics.CachedOpportunities.WithLabelValues(string(mt)).Set(float64(snap.Metadata.TotalOpportunities))
	}

	log.Info().Str("market", string(mt)).Int("batch", batchNum).
		Int("tickers", scanned).Int("opportunities", len(opportunities)).
		Int("total_cached", snap.Metadata.TotalOpportunities).
		Dur("duration", duration).Msg("Batch scan complete")
	return snap, nil
}

// scanTicker fetches one underlying and converts its chain. Provider errors
// propagate typed; they never turn into fabricated data.
func (s *Scanner) scanTicker(ctx context.Context, symbol string) ([]domain.Opportunity, error) {
	if s.metrics != nil {
		s.metrics.ProviderCalls.WithLabelValues("prev_close").Inc()
	}
	u, err := s.provider.PreviousClose(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProviderCalls.WithLabelValues("option_chain").Inc()
	}
	contracts, err := s.provider.OptionChain(ctx, symbol)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out []domain.Opportunity
	for _, c := range contracts {
		if c.Quote.OpenInterest < s.cfg.MinOpenInterest {
			continue
		}
		if c.Expiration.Before(now) {
			continue
		}
		if s.cfg.MaxDTE > 0 && domain.DTE(c.Expiration, now) > s.cfg.MaxDTE {
			continue
		}
		// No quote and no trade print: nothing to price. The calculator
		// could still estimate, but an estimate built on nothing is the
		// kind of synthetic result this pipeline refuses to emit.
		if c.Quote.Bid == 0 && c.Quote.Ask == 0 && c.Quote.Last == 0 {
			continue
		}
		out = append(out, s.calc.Calculate(c, u.Price, now))
	}
	return out, nil
}

func (s *Scanner) logTickerError(mt domain.MarketType, symbol string, err error) {
	if polygon.IsPermanent(err) {
		// Candidate for removal from the universe; kept out of this cycle.
		log.Error().Err(err).Str("market", string(mt)).Str("symbol", symbol).
			Msg("Symbol permanently unavailable, review universe")
		if s.metrics != nil {
			s.metrics.ProviderErrors.WithLabelValues("scan", "permanent").Inc()
		}
		return
	}
	log.Warn().Err(err).Str("market", string(mt)).Str("symbol", symbol).
		Msg("Ticker scan failed, retrying next cycle")
	if s.metrics != nil {
		s.metrics.ProviderErrors.WithLabelValues("scan", "transient").Inc()
	}
}

func (s *Scanner) observeScan(ctx context.Context, mt domain.MarketType, batch int, start time.Time, duration time.Duration, tickers, opportunities int, scanErr error) {
	result := "ok"
	errText := ""
	if scanErr != nil {
		result = "error"
		errText = scanErr.Error()
	}

	if s.metrics != nil {
		s.metrics.ScanDuration.WithLabelValues(string(mt), result).Observe(duration.Seconds())
		s.metrics.ScansTotal.WithLabelValues(string(mt), result).Inc()
		s.metrics.TickersScanned.WithLabelValues(string(mt)).Add(float64(tickers))
	}

	if s.recorder != nil {
		run := ScanRun{
			Market:        mt,
			Batch:         batch,
			StartedAt:     start,
			Duration:      duration,
			Tickers:       tickers,
			Opportunities: opportunities,
			Error:         errText,
		}
		if err := s.recorder.RecordScan(context.WithoutCancel(ctx), run); err != nil {
			log.Warn().Err(err).Msg("Scan history write failed")
		}
	}
}
