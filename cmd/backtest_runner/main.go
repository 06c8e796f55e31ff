package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"tradeEngine/config"
	"tradeEngine/internal/adapters/binanceclient"
	"tradeEngine/internal/adapters/csvfeed"
	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy"
	"tradeEngine/internal/strategy/backtesting"
)

var (
	source    = flag.String("source", "", "bar source: csv or binance (defaults to MARKET_DATA)")
	symbols   = flag.String("symbols", "", "comma separated symbols (defaults to SYMBOLS)")
	limit     = flag.Int("limit", 1500, "bars per symbol when fetching from binance")
	tradesOut = flag.String("trades", "data/backtest_trades.csv", "write simulated trades to this CSV, empty to skip")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Load bars per symbol
	syms := cfg.Symbols
	if *symbols != "" {
		syms = strings.Split(strings.ToUpper(*symbols), ",")
	}
	src := cfg.MarketData
	if *source != "" {
		src = *source
	}
	bars, err := loadBars(ctx, cfg, src, syms, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars: %v", err)
	}

	// 3. Build strategies and backtester
	strategies, err := strategy.Build(cfg.Strategy)
	if err != nil {
		log.Fatalf("FATAL: Failed to build strategies: %v", err)
	}
	bt, err := backtesting.NewBacktester(cfg.BacktestConfig(), strategies, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create backtester: %v", err)
	}

	// 4. Run and report
	report, err := bt.Run(ctx, syms, bars)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		log.Fatalf("Backtest failed: %v", err)
	}
	printReport(report)
	printIndicators(syms, bars, strategies)

	if *tradesOut != "" && len(report.Trades) > 0 {
		if err := csvfeed.WriteTrades(report.Trades, *tradesOut); err != nil {
			log.Fatalf("Error writing trades: %v", err)
		}
		appLogger.Info(ctx, "Saved trades", map[string]interface{}{"filename": *tradesOut, "count": len(report.Trades)})
	}
}

func loadBars(ctx context.Context, cfg *config.Config, src string, syms []string, appLogger ports.Logger) (map[string][]*domain.Kline, error) {
	bars := make(map[string][]*domain.Kline, len(syms))
	switch src {
	case "csv":
		feed, err := csvfeed.NewFeed(cfg.DataDir, appLogger)
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			series, err := feed.Load(ctx, s, cfg.Timeframe)
			if err != nil {
				appLogger.Warn(ctx, "No CSV data for symbol", map[string]interface{}{"symbol": s, "error": err.Error()})
				continue
			}
			bars[s] = series
		}
	case "binance":
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			series, err := client.GetBars(ctx, s, cfg.Timeframe, *limit)
			if err != nil {
				appLogger.Warn(ctx, "No exchange data for symbol", map[string]interface{}{"symbol": s, "error": err.Error()})
				continue
			}
			bars[s] = series
		}
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
	return bars, nil
}

func printReport(r *domain.BacktestReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Metric\tValue")
	fmt.Fprintf(w, "Initial Balance\t%.2f\n", r.InitialBalance)
	fmt.Fprintf(w, "Final Balance\t%.2f\n", r.FinalBalance)
	fmt.Fprintf(w, "Return\t%.2f%%\n", r.ReturnPercent)
	fmt.Fprintf(w, "Total Trades\t%d\n", r.TotalTrades)
	fmt.Fprintf(w, "Winning / Losing\t%d / %d\n", r.WinningTrades, r.LosingTrades)
	fmt.Fprintf(w, "Win Rate\t%.2f%%\n", r.WinRate)
	fmt.Fprintf(w, "Total PnL\t%.2f\n", r.TotalPnL)
	fmt.Fprintf(w, "Avg Win / Avg Loss\t%.2f / %.2f\n", r.AvgWin, r.AvgLoss)
	fmt.Fprintf(w, "Max Drawdown\t%.2f%%\n", r.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe Ratio\t%.3f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Seed\t%d\n", r.Seed)
	w.Flush()
}

// printIndicators shows the indicator values each strategy saw on the last bar.
func printIndicators(syms []string, bars map[string][]*domain.Kline, strategies []ports.Strategy) {
	fmt.Println("\n## Final Indicators")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Symbol\tStrategy\tIndicator\tValue")
	for _, s := range syms {
		series := bars[s]
		if len(series) == 0 {
			continue
		}
		for _, strat := range strategies {
			d, ok := strat.(ports.IndicatorDisplayer)
			if !ok {
				continue
			}
			values := d.Indicators(series)
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\n", s, strat.Name(), name, values[name])
			}
		}
	}
	w.Flush()
}
