package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toption/optionscan/internal/config"
	"github.com/toption/optionscan/internal/domain"
)

func runUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	market, _ := cmd.Flags().GetString("market")
	batch, _ := cmd.Flags().GetInt("batch")

	mt := domain.MarketType(market)
	if !mt.Valid() {
		return fmt.Errorf("unknown market type %q", market)
	}

	um, err := buildUniverse(cfg)
	if err != nil {
		return err
	}

	if batch > 0 {
		if batch > um.TotalBatches() {
			return fmt.Errorf("batch must be in 1..%d", um.TotalBatches())
		}
		symbols := um.Batch(mt, batch)
		fmt.Printf("%s batch %d/%d (%d tickers):\n  %s\n",
			mt, batch, um.TotalBatches(), len(symbols), strings.Join(symbols, " "))
		return nil
	}

	fmt.Printf("%s universe: %d tickers in %d batches\n", mt, len(um.Symbols(mt)), um.TotalBatches())
	for b := 1; b <= um.TotalBatches(); b++ {
		symbols := um.Batch(mt, b)
		fmt.Printf("  batch %d (%d): %s\n", b, len(symbols), strings.Join(symbols, " "))
	}
	return nil
}
