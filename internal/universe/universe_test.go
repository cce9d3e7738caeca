package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toption/optionscan/internal/domain"
)

func TestBatch_PartitionsCoverUniverseExactlyOnce(t *testing.T) {
	m := NewManager(5)

	seen := make(map[string]int)
	for batch := 1; batch <= m.TotalBatches(); batch++ {
		for _, sym := range m.Batch(domain.MarketEquity, batch) {
			seen[sym]++
		}
	}

	assert.Len(t, seen, len(EquityUniverse))
	for sym, n := range seen {
		assert.Equal(t, 1, n, "symbol %s appears in %d batches", sym, n)
	}
}

func TestBatch_Deterministic(t *testing.T) {
	m := NewManager(5)
	assert.Equal(t, m.Batch(domain.MarketIndex, 2), m.Batch(domain.MarketIndex, 2))
}

func TestBatch_WrapsPastTotalBatches(t *testing.T) {
	m := NewManager(5)
	assert.Equal(t, m.Batch(domain.MarketEquity, 1), m.Batch(domain.MarketEquity, 6))
}

func TestLoadManager_OverridesAndFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	content := `
universe:
  total_batches: 3
symbols:
  index:
    - SPY
    - QQQ
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadManager(path)
	require.NoError(t, err)

	assert.Equal(t, 3, m.TotalBatches())
	assert.Equal(t, []string{"SPY", "QQQ"}, m.Symbols(domain.MarketIndex))
	assert.Equal(t, EquityUniverse, m.Symbols(domain.MarketEquity))
}

func TestLoadManager_RejectsUnknownMarket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  crypto:\n    - BTC\n"), 0o644))

	_, err := LoadManager(path)
	assert.Error(t, err)
}
