// Package sched rotates batch scans across market types on a cron schedule.
// It is the in-process alternative to an external cron hitting the batch-scan
// endpoint; deployments pick one or the other.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/domain"
	"github.com/toption/optionscan/internal/scan"
)

// BatchScanner is the slice of the scanner the scheduler drives.
type BatchScanner interface {
	ScanBatch(ctx context.Context, mt domain.MarketType, batchNum int) (*cache.Snapshot, error)
	Refresh(ctx context.Context, mt domain.MarketType) (*cache.Snapshot, error)
}

// Scheduler advances one (market, batch) pair per tick so a full rotation
// spreads provider load evenly instead of bursting at the top of the hour.
type Scheduler struct {
	cron         *cron.Cron
	scanner      BatchScanner
	totalBatches int
	ctx          context.Context

	mu     sync.Mutex
	market int
	batch  int

	now func() time.Time
}

// New builds a scheduler. totalBatches must match the universe partitioning.
func New(ctx context.Context, scanner BatchScanner, totalBatches int) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		scanner:      scanner,
		totalBatches: totalBatches,
		ctx:          ctx,
		batch:        1,
		now:          time.Now,
	}
}

// Register installs the batch rotation on schedule (standard 5-field cron
// expression) plus a weekday pre-open warmup so the first readers of the day
// never see an empty cache.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("register batch rotation: %w", err)
	}
	// 13:25 UTC, five minutes before the equity open.
	if _, err := s.cron.AddFunc("25 13 * * 1-5", s.warmup); err != nil {
		return fmt.Errorf("register warmup: %w", err)
	}
	return nil
}

// Start begins ticking. Stop drains the running job before returning.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Scheduler started")
}

// Stop halts scheduling and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) tick() {
	if !scan.MarketOpen(s.now()) {
		return
	}

	mt, batch := s.advance()
	if _, err := s.scanner.ScanBatch(s.ctx, mt, batch); err != nil {
		log.Error().Err(err).
			Str("market", string(mt)).
			Int("batch", batch).
			Msg("Scheduled batch scan failed")
	}
}

// advance returns the current cursor and moves it: batches first, then the
// next market type, wrapping at the end of the rotation.
func (s *Scheduler) advance() (domain.MarketType, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mt := domain.AllMarketTypes[s.market]
	batch := s.batch

	s.batch++
	if s.batch > s.totalBatches {
		s.batch = 1
		s.market = (s.market + 1) % len(domain.AllMarketTypes)
	}
	return mt, batch
}

func (s *Scheduler) warmup() {
	for _, mt := range domain.AllMarketTypes {
		if _, err := s.scanner.Refresh(s.ctx, mt); err != nil {
			log.Error().Err(err).Str("market", string(mt)).Msg("Warmup refresh failed")
		}
	}
}
