// Package universe holds the static ticker universes the scanner rotates
// through. Static lists avoid the provider call (and its rate-limit cost)
// that enumerating optionable symbols would take every cycle.
package universe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/toption/optionscan/internal/domain"
)

// EquityUniverse is the curated list of the most liquid equity options.
var EquityUniverse = []string{
	// Mega-cap tech
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "NVDA", "META", "TSLA", "AVGO", "NFLX",
	// Large tech
	"AMD", "INTC", "CSCO", "ORCL", "CRM", "ADBE", "QCOM", "TXN", "INTU", "AMAT",
	"LRCX", "KLAC", "SNPS", "CDNS", "MRVL", "PANW", "PLTR", "SNOW", "CRWD", "NET",
	// Financials
	"JPM", "BAC", "WFC", "GS", "MS", "C", "SCHW", "BLK", "AXP", "SPGI",
	"USB", "PNC", "TFC", "BK", "STT", "V", "MA", "PYPL", "SQ", "COIN",
	// Healthcare
	"UNH", "JNJ", "LLY", "ABBV", "MRK", "TMO", "ABT", "PFE", "DHR", "BMY",
	"AMGN", "GILD", "VRTX", "REGN", "ISRG", "CVS", "CI", "HUM", "BSX", "MDT",
	// Consumer discretionary
	"HD", "MCD", "NKE", "SBUX", "LOW", "TJX", "BKNG", "MAR",
	"CMG", "ORLY", "AZO", "ROST", "DG", "DLTR", "YUM", "DPZ", "ULTA", "RCL",
	// Consumer staples
	"WMT", "COST", "PG", "KO", "PEP", "PM", "MO", "MDLZ", "CL", "KMB",
	"GIS", "K", "HSY", "STZ", "TAP", "CPB", "CAG", "SJM", "HRL", "TSN",
	// Energy
	"XOM", "CVX", "COP", "SLB", "EOG", "MPC", "PSX", "VLO", "OXY", "HAL",
	"DVN", "FANG", "HES", "MRO", "APA", "CTRA", "BKR", "NOV", "FTI", "RIG",
	// Industrials
	"BA", "CAT", "GE", "HON", "UPS", "RTX", "LMT", "DE", "MMM", "UNP",
	"GD", "NOC", "ETN", "EMR", "ITW", "PH", "FDX", "CSX", "NSC", "WM",
	// Communication services
	"DIS", "CMCSA", "T", "VZ", "TMUS", "CHTR", "EA", "TTWO", "NTES", "MTCH",
	// Materials
	"LIN", "APD", "ECL", "SHW", "FCX", "NEM", "GOLD", "NUE", "VMC", "MLM",
	// Real estate
	"AMT", "PLD", "CCI", "EQIX", "PSA", "DLR", "O", "WELL", "AVB", "EQR",
	// Utilities
	"NEE", "DUK", "SO", "D", "AEP", "EXC", "SRE", "XEL", "WEC", "ES",
	// High-IV names
	"GME", "AMC", "RIVN", "LCID", "NIO", "SOFI", "HOOD", "RBLX", "MSTR", "SMCI",
	// Cloud/SaaS
	"NOW", "DDOG", "ZS", "OKTA", "MDB", "TEAM", "WDAY", "ZM", "DOCU", "TWLO",
	// Semiconductors
	"TSM", "ASML", "MU", "NXPI", "ADI", "MCHP", "ON", "MPWR", "SWKS", "QRVO",
	// Biotech
	"MRNA", "BNTX", "NVAX", "CRSP", "EDIT", "NTLA", "BEAM", "BLUE", "FOLD", "ARWR",
}

// IndexUniverse covers indexes and the most liquid index/sector ETFs.
var IndexUniverse = []string{
	"SPX", "NDX", "RUT", "DJX", "VIX", "VVIX",
	"SPY", "QQQ", "IWM", "DIA", "VTI", "VOO", "VEA", "VWO", "EEM", "EFA",
	"XLK", "XLF", "XLE", "XLV", "XLI", "XLY", "XLP", "XLU", "XLC", "XLRE", "XLB",
	"IVV", "IVW", "IVE", "IJH", "IJR", "VTV", "VUG", "VBR", "VB",
}

// FuturesUniverse covers futures with listed options.
var FuturesUniverse = []string{
	"/ES", "/NQ", "/YM", "/RTY",
	"/CL", "/NG", "/RB", "/HO",
	"/GC", "/SI", "/HG", "/PL",
	"/ZC", "/ZS", "/ZW", "/ZL", "/ZM", "/KC", "/CC", "/SB", "/CT",
	"/6E", "/6B", "/6J", "/6A", "/6C", "/6S",
	"/ZB", "/ZN", "/ZF", "/ZT",
	"/VX", "/BTC", "/ETH",
}

// Manager hands out market universes and deterministic batch partitions.
type Manager struct {
	universes    map[domain.MarketType][]string
	totalBatches int
}

// fileConfig is the optional YAML override shape.
type fileConfig struct {
	Universe struct {
		TotalBatches int `yaml:"total_batches"`
	} `yaml:"universe"`
	Symbols map[string][]string `yaml:"symbols"`
}

// NewManager returns a manager over the built-in static universes.
// totalBatches controls how many cron ticks one full rotation takes.
func NewManager(totalBatches int) *Manager {
	if totalBatches <= 0 {
		totalBatches = 5
	}
	return &Manager{
		universes: map[domain.MarketType][]string{
			domain.MarketEquity:  EquityUniverse,
			domain.MarketIndex:   IndexUniverse,
			domain.MarketFutures: FuturesUniverse,
		},
		totalBatches: totalBatches,
	}
}

// LoadManager builds a manager from a YAML file, falling back to the
// built-in lists for any market the file does not mention.
func LoadManager(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse universe config: %w", err)
	}

	m := NewManager(cfg.Universe.TotalBatches)
	for market, symbols := range cfg.Symbols {
		mt := domain.MarketType(market)
		if !mt.Valid() {
			return nil, fmt.Errorf("unknown market type %q in universe config", market)
		}
		if len(symbols) > 0 {
			m.universes[mt] = symbols
		}
	}
	return m, nil
}

// TotalBatches returns how many batches one full rotation covers.
func (m *Manager) TotalBatches() int { return m.totalBatches }

// Symbols returns the full universe for a market type.
func (m *Manager) Symbols(mt domain.MarketType) []string {
	return m.universes[mt]
}

// Batch returns the 1-based batchNum'th slice of the market's universe.
// Partitions are deterministic: the same batch number always covers the
// same symbols until the universe itself changes.
func (m *Manager) Batch(mt domain.MarketType, batchNum int) []string {
	all := m.universes[mt]
	if len(all) == 0 {
		return nil
	}
	if batchNum < 1 {
		batchNum = 1
	}
	batchNum = ((batchNum - 1) % m.totalBatches) + 1

	size := (len(all) + m.totalBatches - 1) / m.totalBatches
	start := (batchNum - 1) * size
	if start >= len(all) {
		return nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
