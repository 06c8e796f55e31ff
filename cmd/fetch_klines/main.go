package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradeEngine/config"
	"tradeEngine/internal/adapters/binanceclient"
	"tradeEngine/internal/adapters/csvfeed"
	"tradeEngine/internal/adapters/logger"
)

var (
	symbol   = flag.String("symbol", "", "symbol to fetch (defaults to every configured symbol)")
	interval = flag.String("interval", "", "kline interval (defaults to TIMEFRAME)")
	days     = flag.Int("days", 90, "days of history to fetch")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 3. Initialize Binance client and CSV feed
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("FATAL: Failed to create data directory: %v", err)
	}
	feed, err := csvfeed.NewFeed(cfg.DataDir, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize CSV feed: %v", err)
	}

	symbols := cfg.Symbols
	if *symbol != "" {
		symbols = []string{*symbol}
	}
	tf := cfg.Timeframe
	if *interval != "" {
		tf = *interval
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -*days)

	for _, s := range symbols {
		fmt.Printf("Fetching klines for %s %s from %s to %s...\n", s, tf, start.Format(time.RFC3339), end.Format(time.RFC3339))
		klines, err := binanceClient.GetKlinesRange(ctx, s, tf, start, end)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching klines", map[string]interface{}{"symbol": s})
			continue
		}
		filename := feed.Path(s, tf)
		if err := csvfeed.WriteKlines(klines, filename); err != nil {
			appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"filename": filename})
			continue
		}
		appLogger.Info(ctx, "Saved klines", map[string]interface{}{"symbol": s, "count": len(klines), "filename": filename})
	}
}
