package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upbot/internal/market"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  mode: backtest\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "240", cfg.Trade.Interval)
	assert.Equal(t, 200, cfg.Trade.CandleCount)
	assert.Equal(t, 10, cfg.Trade.Scope)
	assert.Equal(t, market.BasisClose, cfg.Trade.Basis)
	assert.Equal(t, 30000.0, cfg.Trade.BidBet)
	assert.Equal(t, "MACD", cfg.Trade.Operator)
	assert.Equal(t, 1000000.0, cfg.Backtest.Balance)
	assert.Equal(t, []string{"KRW-BTC", "KRW-ETH"}, cfg.Backtest.Markets)
	assert.Equal(t, 60, cfg.Loop.IntervalSeconds)

	// 未配置规则时按指标补默认规则表
	require.Len(t, cfg.Rules.Bid, 2)
	require.Len(t, cfg.Rules.Ask, 3)
	assert.Equal(t, "golden", cfg.Rules.Bid[0].Cross)
	assert.Equal(t, 2.0, cfg.Rules.Bid[1].Rate)
}

func TestLoadExplicitRules(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: backtest
trade:
  operator: RSI
rules:
  bid:
    - indicator: RSI
      pattern: W
      min: 0
      max: 30
      rate: 1.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules.Bid, 1)
	assert.Equal(t, "W", cfg.Rules.Bid[0].Pattern)
	assert.Equal(t, 1.5, cfg.Rules.Bid[0].Rate)
	assert.Empty(t, cfg.Rules.Ask)
}

func TestLiveModeRequiresKeys(t *testing.T) {
	t.Setenv("UPBIT_ACCESS_KEY", "")
	t.Setenv("UPBIT_SECRET_KEY", "")
	path := writeConfig(t, "app:\n  mode: live\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_key")
}

func TestLiveModeKeysFromEnv(t *testing.T) {
	t.Setenv("UPBIT_ACCESS_KEY", "ak")
	t.Setenv("UPBIT_SECRET_KEY", "sk")
	path := writeConfig(t, "app:\n  mode: live\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ak", cfg.Upbit.AccessKey)
}

func TestValidateRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, "trade:\n  interval: \"7\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadRule(t *testing.T) {
	path := writeConfig(t, `
rules:
  bid:
    - indicator: SMA
      cross: golden
      min: 0
      max: 1
      rate: 1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsShortCandleCountForMACD(t *testing.T) {
	// MACD 规则配上预热期都盖不住的蜡烛数，指标永远不可用
	path := writeConfig(t, "trade:\n  candle_count: 30\n  scope: 5\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candle_count")

	// 非 MACD 规则不受该下限约束
	path = writeConfig(t, `
trade:
  candle_count: 30
  scope: 5
  operator: RSI
`)
	_, err = Load(path)
	assert.NoError(t, err)
}

func TestDumpMasksSecrets(t *testing.T) {
	path := writeConfig(t, "upbit:\n  access_key: abcdefgh\n  secret_key: zz\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	dump, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, dump, "abcd****")
	assert.NotContains(t, dump, "abcdefgh")
	assert.NotContains(t, dump, "zz")
}
