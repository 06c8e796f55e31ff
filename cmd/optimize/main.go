package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"tradeEngine/config"
	"tradeEngine/internal/adapters/csvfeed"
	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy"
	"tradeEngine/internal/strategy/optimization"
)

// rangeFlags collects repeated -param name=min:max:step values.
type rangeFlags []optimization.ParameterRange

func (r *rangeFlags) String() string {
	parts := make([]string, len(*r))
	for i, p := range *r {
		parts[i] = fmt.Sprintf("%s=%g:%g:%g", p.Name, p.Min, p.Max, p.Step)
	}
	return strings.Join(parts, ",")
}

func (r *rangeFlags) Set(v string) error {
	name, raw, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected name=min:max:step, got %q", v)
	}
	bounds := strings.Split(raw, ":")
	if len(bounds) != 3 {
		return fmt.Errorf("expected min:max:step for %s, got %q", name, raw)
	}
	var vals [3]float64
	for i, b := range bounds {
		f, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		vals[i] = f
	}
	*r = append(*r, optimization.ParameterRange{Name: name, Min: vals[0], Max: vals[1], Step: vals[2]})
	return nil
}

var (
	strategyName = flag.String("strategy", "rsi", "registry name of the strategy to tune")
	top          = flag.Int("top", 10, "results to print")
	workers      = flag.Int("workers", 0, "concurrent backtests (defaults to GOMAXPROCS)")
	ranges       rangeFlags
)

func main() {
	flag.Var(&ranges, "param", "parameter range name=min:max:step, repeatable")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	if len(ranges) == 0 {
		log.Fatalf("At least one -param is required; %s accepts %s", *strategyName, strings.Join(strategy.ParamNames(*strategyName), ", "))
	}
	for i := range ranges {
		ranges[i].IsInt = strings.Contains(ranges[i].Name, "period") || ranges[i].Name == "fast" || ranges[i].Name == "slow" || ranges[i].Name == "signal"
	}

	feed, err := csvfeed.NewFeed(cfg.DataDir, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize CSV feed: %v", err)
	}
	bars := make(map[string][]*domain.Kline, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		series, err := feed.Load(ctx, s, cfg.Timeframe)
		if err != nil {
			appLogger.Warn(ctx, "No CSV data for symbol", map[string]interface{}{"symbol": s, "error": err.Error()})
			continue
		}
		bars[s] = series
	}

	name := *strategyName
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: ranges,
		Backtest:        cfg.BacktestConfig(),
		Workers:         *workers,
	}, func(params map[string]float64) (ports.Strategy, error) {
		return strategy.FromParams(name, params)
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create optimizer: %v", err)
	}

	results, err := opt.Optimize(ctx, cfg.Symbols, bars)
	if err != nil {
		log.Fatalf("Optimization failed: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Rank\tParameters\tTrades\tWinRate\tReturn\tMaxDD\tSharpe")
	for i, r := range results {
		if i >= *top {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f%%\t%.2f%%\t%.2f%%\t%.3f\n", i+1, formatParams(r.Parameters),
			r.Report.TotalTrades, r.Report.WinRate, r.Report.ReturnPercent, r.Report.MaxDrawdown, r.Report.SharpeRatio)
	}
	w.Flush()
}

func formatParams(params map[string]float64) string {
	keys := strategy.ParamNames(*strategyName)
	parts := make([]string, 0, len(params))
	for _, k := range keys {
		if v, ok := params[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", k, v))
		}
	}
	return strings.Join(parts, " ")
}
