package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"tradeEngine/config"
	"tradeEngine/internal/adapters/binanceclient"
	"tradeEngine/internal/adapters/csvfeed"
	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/adapters/metrics"
	"tradeEngine/internal/adapters/sqlite"
	"tradeEngine/internal/adapters/telegram"
	"tradeEngine/internal/app"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/risk"
	"tradeEngine/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	if z, ok := appLogger.(*logger.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data
	var market ports.MarketData
	switch cfg.MarketData {
	case "csv":
		market, err = csvfeed.NewFeed(cfg.DataDir, appLogger)
	default:
		var client *binanceclient.Client
		client, err = binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err == nil {
			if pingErr := client.Ping(ctx); pingErr != nil {
				appLogger.Warn(ctx, "Binance ping failed, continuing", map[string]interface{}{"error": pingErr.Error()})
			} else if serverTime, timeErr := client.GetServerTime(ctx); timeErr == nil {
				appLogger.Info(ctx, "Binance server time", map[string]interface{}{
					"serverTime": serverTime.Format(time.RFC3339),
					"clockSkew":  time.Since(serverTime).Round(time.Millisecond).String(),
				})
			}
		}
		market = client
	}
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market data")
		log.Fatalf("FATAL: Failed to initialize market data: %v", err)
	}
	appLogger.Info(ctx, "Market data initialized", map[string]interface{}{"source": cfg.MarketData})

	// 5. Initialize Notifier (log-only without Telegram credentials)
	var notifier ports.Notifier = telegram.NewLogNotifier(appLogger)
	if cfg.TelegramToken != "" {
		tg, err := telegram.New(telegram.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID, Timeout: cfg.CallTimeout, Logger: appLogger})
		if err != nil {
			appLogger.Warn(ctx, "Telegram notifier unavailable, falling back to log notifications", map[string]interface{}{"error": err.Error()})
		} else {
			notifier = tg
		}
	}

	// 6. Initialize Metrics
	var engineMetrics ports.Metrics = ports.NopMetrics{}
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus()
		engineMetrics = prom
		go func() {
			if err := prom.Serve(ctx, cfg.MetricsAddr, appLogger); err != nil {
				appLogger.Error(ctx, err, "Metrics server stopped")
			}
		}()
	}

	// 7. Initialize Risk Manager and Strategies
	riskManager, err := risk.NewRiskManager(cfg.Risk, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}
	strategies, err := strategy.Build(cfg.Strategy)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategies")
		log.Fatalf("FATAL: Failed to initialize trading strategies: %v", err)
	}
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	appLogger.Info(ctx, "Trading strategies initialized", map[string]interface{}{"strategies": names})

	// 8. Initialize Engine
	engine, err := app.NewEngine(app.Config{
		Mode:           cfg.Mode,
		Symbols:        cfg.Symbols,
		Timeframe:      cfg.Timeframe,
		BarLimit:       cfg.BarLimit,
		TickInterval:   cfg.TickInterval,
		CallTimeout:    cfg.CallTimeout,
		AccountBalance: cfg.AccountBalance,
		Backtest:       cfg.BacktestConfig(),
		HandleSignals:  true,
	}, app.Dependencies{
		Logger:     appLogger,
		MarketData: market,
		Store:      repo,
		Notifier:   notifier,
		Metrics:    engineMetrics,
		Risk:       riskManager,
		Strategies: strategies,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading engine")
		log.Fatalf("FATAL: Failed to initialize trading engine: %v", err)
	}

	// 9. Start the Engine, blocks until SIGINT/SIGTERM
	if err := engine.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading engine exited with error")
		log.Fatalf("FATAL: Trading engine exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
