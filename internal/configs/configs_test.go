package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
symbols: [BTCUSDT, ETHUSDT]
refresh_interval: 10s
risk_params:
  max_position_size: 10000
  risk_per_trade: 0.01
order_manager:
  max_checks: 5
advisor:
  enabled: true
  min_score: 0.2
exchange_config:
  api_key: k
  secret_key: s
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, config.Symbols)
	assert.Equal(t, "10s", config.RefreshInterval)
	assert.Equal(t, 10000.0, config.RiskParams.MaxPositionSize)
	assert.Equal(t, 5, config.OrderManager.MaxChecks)
	assert.True(t, config.Advisor.Enabled)
	assert.Equal(t, "k", config.ExchangeConfig.APIKey)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "symbols": ["BTCUSDT"],
  "trading_config": {"equity": 100000, "order_type": "limit"}
}`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, config.Symbols)
	assert.Equal(t, 100000.0, config.TradingConfig.Equity)
	assert.Equal(t, "limit", config.TradingConfig.OrderType)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)

	path := writeFile(t, "config.toml", "symbols = []")
	_, err = Load(path)
	assert.Error(t, err)

	path = writeFile(t, "bad.json", "{not json")
	_, err = Load(path)
	assert.Error(t, err)
}
