package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, domain.ModePaper, cfg.Mode)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, time.Minute, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, 1000.0, cfg.Risk.MaxPositionSize)
	assert.Equal(t, []string{"bollinger", "ma_crossover", "macd", "rsi"}, cfg.Strategy.Enabled)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	bt := cfg.BacktestConfig()
	assert.Equal(t, 200, bt.Lookback)
	assert.Equal(t, int64(42), bt.Seed)
	assert.Equal(t, 10000.0, bt.InitialBalance)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TRADING_MODE", "LIVE")
	t.Setenv("SYMBOLS", " solusdt, ,btcusdt ")
	t.Setenv("TICK_INTERVAL_SECONDS", "5")
	t.Setenv("STRATEGIES", "rsi,macd")
	t.Setenv("RSI_PERIOD", "7")
	t.Setenv("BACKTEST_SEED", "7")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, domain.ModeLive, cfg.Mode)
	assert.Equal(t, []string{"SOLUSDT", "BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, []string{"rsi", "macd"}, cfg.Strategy.Enabled)
	assert.Equal(t, 7, cfg.Strategy.RSI.Period)
	assert.Equal(t, int64(7), cfg.BacktestSeed)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_AccumulatesErrors(t *testing.T) {
	t.Setenv("TRADING_MODE", "demo")
	t.Setenv("BAR_LIMIT", "many")
	t.Setenv("MAX_POSITIONS", "0")
	t.Setenv("STRATEGIES", "rsi,unknown")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "configuration validation failed")
	assert.Contains(t, msg, "TRADING_MODE")
	assert.Contains(t, msg, "BAR_LIMIT")
	assert.Contains(t, msg, "risk limits")
	assert.Contains(t, msg, "unknown")
	assert.Contains(t, msg, "TELEGRAM_CHAT_ID")
}
