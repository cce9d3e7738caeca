package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toption/optionscan/internal/cache"
	"github.com/toption/optionscan/internal/config"
	"github.com/toption/optionscan/internal/domain"
	"github.com/toption/optionscan/internal/provider/polygon"
	"github.com/toption/optionscan/internal/scan"
)

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Polygon.APIKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is required for a live scan")
	}

	market, _ := cmd.Flags().GetString("market")
	batch, _ := cmd.Flags().GetInt("batch")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	mt := domain.MarketType(market)
	if !mt.Valid() {
		return fmt.Errorf("unknown market type %q", market)
	}

	um, err := buildUniverse(cfg)
	if err != nil {
		return err
	}
	if !all && (batch < 1 || batch > um.TotalBatches()) {
		return fmt.Errorf("batch must be in 1..%d", um.TotalBatches())
	}

	client := polygon.NewClient(polygon.Config{
		BaseURL:        cfg.Polygon.BaseURL,
		APIKey:         cfg.Polygon.APIKey,
		RequestsPerMin: float64(cfg.Polygon.RequestsPerMin),
		Burst:          cfg.Polygon.Burst,
		Timeout:        cfg.Polygon.Timeout(),
		MaxChainPages:  cfg.Polygon.MaxChainPages,
	})

	store := cache.NewMemoryStore(cfg.Cache.TTL())
	scanner := scan.New(client, store, um, domain.NewCalculator(nil), scan.Config{
		MinOpenInterest: cfg.Scan.MinOpenInterest,
		MaxDTE:          cfg.Scan.MaxDTE,
		MaxScanDuration: cfg.Scan.MaxScanDuration(),
	}, nil, nil)

	ctx := context.Background()
	var snap *cache.Snapshot
	if all {
		snap, err = scanner.Refresh(ctx, mt)
	} else {
		snap, err = scanner.ScanBatch(ctx, mt, batch)
	}
	if err != nil {
		return err
	}

	ranked := domain.FilterAndRank(snap.Opportunities, domain.FilterSpec{Limit: limit})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Market        domain.MarketType    `json:"market"`
		Tickers       int                  `json:"tickers_scanned"`
		Total         int                  `json:"total_opportunities"`
		Opportunities []domain.Opportunity `json:"opportunities"`
	}{
		Market:        mt,
		Tickers:       snap.Metadata.TickersScanned,
		Total:         snap.Metadata.TotalOpportunities,
		Opportunities: ranked,
	})
}
