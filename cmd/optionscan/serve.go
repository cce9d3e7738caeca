package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/config"
	"github.com/toption/optionscan/internal/domain"
	httpapi "github.com/toption/optionscan/internal/interfaces/http"
	"github.com/toption/optionscan/internal/interfaces/http/handlers"
	"github.com/toption/optionscan/internal/persistence"
	"github.com/toption/optionscan/internal/provider/polygon"
	"github.com/toption/optionscan/internal/scan"
	"github.com/toption/optionscan/internal/sched"
	"github.com/toption/optionscan/internal/telemetry"
	"github.com/toption/optionscan/internal/universe"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Polygon.APIKey == "" {
		log.Warn().Msg("No Polygon API key configured, provider calls will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()

	um, err := buildUniverse(cfg)
	if err != nil {
		return err
	}

	var (
		store cache.Store
		mem   *cache.MemoryStore
	)
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		store = cache.NewRedisStore(client, cfg.Cache.TTL())
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis snapshot cache")
	} else {
		mem = cache.NewMemoryStore(cfg.Cache.TTL())
		store = mem
		log.Info().Msg("Using in-memory snapshot cache")
	}

	var (
		recorder scan.Recorder
		history  handlers.ScanHistory
	)
	if cfg.Persistence.DSN != "" {
		pg, err := persistence.Open(ctx, cfg.Persistence.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		recorder = pg
		history = pg
		log.Info().Msg("Scan history persistence enabled")
	}

	client := polygon.NewClient(polygon.Config{
		BaseURL:        cfg.Polygon.BaseURL,
		APIKey:         cfg.Polygon.APIKey,
		RequestsPerMin: float64(cfg.Polygon.RequestsPerMin),
		Burst:          cfg.Polygon.Burst,
		Timeout:        cfg.Polygon.Timeout(),
		MaxChainPages:  cfg.Polygon.MaxChainPages,
	})

	scanner := scan.New(client, store, um, domain.NewCalculator(nil), scan.Config{
		MinOpenInterest: cfg.Scan.MinOpenInterest,
		MaxDTE:          cfg.Scan.MaxDTE,
		MaxScanDuration: cfg.Scan.MaxScanDuration(),
	}, metrics, recorder)

	if cfg.Scheduler.Enabled {
		scheduler := sched.New(ctx, scanner, um.TotalBatches())
		if err := scheduler.Register(cfg.Scheduler.Schedule); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Live quote repricing needs in-place cache writes, which only the
	// in-memory store supports.
	if cfg.Polygon.StreamQuotes && mem != nil {
		startQuoteStream(ctx, cfg.Polygon.APIKey, mem)
	}

	h := handlers.New(store, scanner, history, handlers.Config{
		CronSecret: cfg.Server.CronSecret,
		Version:    version,
		CacheTTL:   cfg.Cache.TTL(),
	})

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}, h, metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildUniverse(cfg config.Config) (*universe.Manager, error) {
	if cfg.Universe.Path != "" {
		return universe.LoadManager(cfg.Universe.Path)
	}
	return universe.NewManager(cfg.Scan.TotalBatches), nil
}

// startQuoteStream keeps cached premiums fresh between scan cycles by
// repricing opportunities as quote ticks arrive. The watch list follows
// whatever contracts are currently cached, refreshed once a minute.
func startQuoteStream(ctx context.Context, apiKey string, mem *cache.MemoryStore) {
	stream := polygon.NewStream("", apiKey, func(u polygon.QuoteUpdate) {
		mem.ApplyQuote(u.Contract, u.Bid, u.Ask, u.At)
	})
	go stream.Run(ctx)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stream.Subscribe(cachedContracts(ctx, mem))
			}
		}
	}()
}

func cachedContracts(ctx context.Context, store cache.Store) []string {
	seen := make(map[string]struct{})
	var contracts []string
	for _, mt := range domain.AllMarketTypes {
		snap, _, err := store.Get(ctx, mt)
		if err != nil || snap == nil {
			continue
		}
		for _, opp := range snap.Opportunities {
			if _, ok := seen[opp.Contract]; ok {
				continue
			}
			seen[opp.Contract] = struct{}{}
			contracts = append(contracts, opp.Contract)
		}
	}
	return contracts
}
