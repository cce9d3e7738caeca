package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "optionscan"
	version = "v1.0.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Options income scanner",
		Version: version,
		Long: `optionscan scans option chains across equity, index, and futures
universes for cash-secured put and covered call income opportunities,
keeps the results in a rolling batch cache, and serves them over a JSON
API.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (defaults apply when omitted)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the batch-scan scheduler",
		Long:  "Starts the HTTP API, the in-process scan scheduler, and (when configured) the Redis cache, Postgres scan history, and live quote stream",
		RunE:  runServe,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one batch scan and print the results",
		Long:  "Scans a single universe batch against the live provider and writes the ranked opportunities to stdout as JSON",
		RunE:  runScan,
	}
	scanCmd.Flags().String("market", "equity", "Market type (equity|index|futures)")
	scanCmd.Flags().Int("batch", 1, "Batch number (1-based)")
	scanCmd.Flags().Bool("all", false, "Scan every batch of the market")
	scanCmd.Flags().Int("limit", 20, "Max opportunities to print")

	universeCmd := &cobra.Command{
		Use:   "universe",
		Short: "Print the ticker universe and its batch partitioning",
		RunE:  runUniverse,
	}
	universeCmd.Flags().String("market", "equity", "Market type (equity|index|futures)")
	universeCmd.Flags().Int("batch", 0, "Print only this batch (0 = all)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(universeCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
