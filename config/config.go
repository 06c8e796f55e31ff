package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/domain"
	"tradeEngine/internal/risk"
	"tradeEngine/internal/strategy"
	"tradeEngine/internal/strategy/backtesting"
)

// Config holds all application configuration.
type Config struct {
	// Engine
	Mode         domain.TradingMode
	Symbols      []string
	Timeframe    string
	BarLimit     int           // Bars fetched per symbol per tick
	TickInterval time.Duration // Time between trading loop iterations
	CallTimeout  time.Duration // Bound on every collaborator call

	// Risk
	AccountBalance float64 // Balance used for position sizing
	Risk           risk.RiskConfig

	// Strategies, resolved through the strategy registry
	Strategy strategy.Config

	// Backtesting
	BacktestInitialBalance float64
	BacktestSeed           int64
	BacktestLookback       int

	// Binance API (public klines work without keys)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Telegram notifications, log-only when unset
	TelegramToken  string
	TelegramChatID int64

	// Storage and data
	DBPath     string
	MarketData string // binance or csv
	DataDir    string // CSV klines for the csv market data feed

	// Observability
	LogLevel    logger.LogLevel
	LogFormat   string // text or json
	MetricsAddr string // Empty disables the /metrics listener
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Engine
	cfg.Mode = domain.TradingMode(strings.ToLower(getEnv("TRADING_MODE", string(domain.ModePaper))))
	if cfg.Mode != domain.ModePaper && cfg.Mode != domain.ModeLive {
		errs = append(errs, fmt.Sprintf("TRADING_MODE must be %q or %q", domain.ModePaper, domain.ModeLive))
	}

	cfg.Symbols = getEnvAsList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT"})
	for i, s := range cfg.Symbols {
		cfg.Symbols[i] = strings.ToUpper(s)
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	cfg.Timeframe = getEnv("TIMEFRAME", "1h")

	cfg.BarLimit, err = getEnvAsIntRequired("BAR_LIMIT", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_LIMIT: %v", err))
	} else if cfg.BarLimit <= 0 {
		errs = append(errs, "BAR_LIMIT must be positive")
	}

	tickSeconds, err := getEnvAsIntRequired("TICK_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TICK_INTERVAL_SECONDS: %v", err))
	} else if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	timeoutSeconds, err := getEnvAsIntRequired("CALL_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CALL_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "CALL_TIMEOUT_SECONDS must be positive")
	}
	cfg.CallTimeout = time.Duration(timeoutSeconds) * time.Second

	// Risk
	cfg.AccountBalance, err = getEnvAsFloatRequired("ACCOUNT_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_BALANCE: %v", err))
	} else if cfg.AccountBalance <= 0 {
		errs = append(errs, "ACCOUNT_BALANCE must be positive")
	}

	cfg.Risk.MaxPositionSize, err = getEnvAsFloatRequired("MAX_POSITION_SIZE", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_SIZE: %v", err))
	}
	cfg.Risk.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	}
	cfg.Risk.MaxDailyLoss, err = getEnvAsFloatRequired("MAX_DAILY_LOSS", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS: %v", err))
	}
	cfg.Risk.RiskPerTradePercent, err = getEnvAsFloatRequired("RISK_PER_TRADE_PERCENT", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE_PERCENT: %v", err))
	}
	if err := cfg.Risk.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid risk limits: %v", err))
	}

	// Strategies
	cfg.Strategy = strategy.DefaultConfig()
	cfg.Strategy.Enabled = getEnvAsList("STRATEGIES", strategy.Names())
	cfg.Strategy.RSI.Period = getEnvAsInt("RSI_PERIOD", cfg.Strategy.RSI.Period)
	cfg.Strategy.RSI.Oversold = getEnvAsFloat("RSI_OVERSOLD", cfg.Strategy.RSI.Oversold)
	cfg.Strategy.RSI.Overbought = getEnvAsFloat("RSI_OVERBOUGHT", cfg.Strategy.RSI.Overbought)
	cfg.Strategy.MACD.FastPeriod = getEnvAsInt("MACD_FAST", cfg.Strategy.MACD.FastPeriod)
	cfg.Strategy.MACD.SlowPeriod = getEnvAsInt("MACD_SLOW", cfg.Strategy.MACD.SlowPeriod)
	cfg.Strategy.MACD.SignalPeriod = getEnvAsInt("MACD_SIGNAL", cfg.Strategy.MACD.SignalPeriod)
	cfg.Strategy.Bollinger.Period = getEnvAsInt("BB_PERIOD", cfg.Strategy.Bollinger.Period)
	cfg.Strategy.Bollinger.StdDev = getEnvAsFloat("BB_STDDEV", cfg.Strategy.Bollinger.StdDev)
	cfg.Strategy.MACrossover.FastPeriod = getEnvAsInt("MA_FAST", cfg.Strategy.MACrossover.FastPeriod)
	cfg.Strategy.MACrossover.SlowPeriod = getEnvAsInt("MA_SLOW", cfg.Strategy.MACrossover.SlowPeriod)

	// Unknown names and bad parameters fail here, not on the first tick
	if _, err := strategy.Build(cfg.Strategy); err != nil {
		errs = append(errs, fmt.Sprintf("invalid strategies: %v", err))
	}

	// Backtesting
	cfg.BacktestInitialBalance, err = getEnvAsFloatRequired("BACKTEST_INITIAL_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKTEST_INITIAL_BALANCE: %v", err))
	} else if cfg.BacktestInitialBalance <= 0 {
		errs = append(errs, "BACKTEST_INITIAL_BALANCE must be positive")
	}
	seed, err := getEnvAsIntRequired("BACKTEST_SEED", 42)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKTEST_SEED: %v", err))
	}
	cfg.BacktestSeed = int64(seed)
	cfg.BacktestLookback, err = getEnvAsIntRequired("BACKTEST_LOOKBACK", 200)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKTEST_LOOKBACK: %v", err))
	} else if cfg.BacktestLookback <= 0 {
		errs = append(errs, "BACKTEST_LOOKBACK must be positive")
	}

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Telegram
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if chatID := getEnv("TELEGRAM_CHAT_ID", ""); chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is set")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_engine.db")
	cfg.DataDir = getEnv("DATA_DIR", "./data/klines")
	cfg.MarketData = strings.ToLower(getEnv("MARKET_DATA", "binance"))
	if cfg.MarketData != "binance" && cfg.MarketData != "csv" {
		errs = append(errs, "MARKET_DATA must be binance or csv")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// BacktestConfig returns the replay parameters with the configured overrides.
func (c *Config) BacktestConfig() backtesting.Config {
	bt := backtesting.DefaultConfig()
	bt.InitialBalance = c.BacktestInitialBalance
	bt.Seed = c.BacktestSeed
	bt.Lookback = c.BacktestLookback
	return bt
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
