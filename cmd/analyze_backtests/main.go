package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"tradeEngine/config"
	"tradeEngine/internal/adapters/csvfeed"
	"tradeEngine/internal/adapters/logger"
	"tradeEngine/internal/adapters/sqlite"
	"tradeEngine/internal/domain"
	"tradeEngine/internal/strategy/analytics"
)

var (
	tradesFile = flag.String("trades", "", "backtest trades CSV to analyze")
	balance    = flag.Float64("balance", 0, "initial balance of the backtest (defaults to BACKTEST_INITIAL_BALANCE)")
	history    = flag.Int("history", 20, "stored positions to list from the database, 0 to skip")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	if *tradesFile != "" {
		trades, err := csvfeed.ReadTrades(*tradesFile)
		if err != nil {
			log.Fatalf("Error reading trades from %s: %v", *tradesFile, err)
		}
		initial := cfg.BacktestInitialBalance
		if *balance > 0 {
			initial = *balance
		}
		printBacktestAnalysis(trades, initial)
	}

	if *history > 0 {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to open database: %v", err)
		}
		defer repo.Close()

		positions, err := repo.ListHistory(ctx, *history)
		if err != nil {
			log.Fatalf("Error reading history: %v", err)
		}
		stats, err := repo.AggregateStats(ctx)
		if err != nil {
			log.Fatalf("Error reading stats: %v", err)
		}
		printHistory(positions, stats)
	}
}

func printBacktestAnalysis(trades []*domain.Trade, initial float64) {
	m := analytics.AnalyzePerformance(trades, initial)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Trades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tMaxDD\tSharpe\tPF\tMaxWins\tMaxLosses\t")
	fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.3f\t%.2f\t%d\t%d\t\n",
		m.TotalTrades, m.WinRate, m.AverageWin, m.AverageLoss, m.TotalPnL,
		m.MaxDrawdown, m.SharpeRatio, m.ProfitFactor, m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	w.Flush()

	fmt.Println("\n## Monthly PnL")
	for _, mr := range m.GetMonthlyReturns() {
		fmt.Printf("%s\t%.2f\n", mr.Month.Format("2006-01"), mr.Return)
	}

	// Per strategy breakdown
	type bucket struct {
		count int
		pnl   float64
	}
	byStrategy := make(map[string]*bucket)
	for _, t := range trades {
		b, ok := byStrategy[t.Strategy]
		if !ok {
			b = &bucket{}
			byStrategy[t.Strategy] = b
		}
		b.count++
		b.pnl += t.PnL
	}
	names := make([]string, 0, len(byStrategy))
	for name := range byStrategy {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\n## Strategy Breakdown")
	fmt.Println("Strategy\tCount\tTotal PnL\tAvg PnL")
	for _, name := range names {
		b := byStrategy[name]
		fmt.Printf("%s\t%d\t%.2f\t%.2f\n", name, b.count, b.pnl, b.pnl/float64(b.count))
	}
}

func printHistory(positions []*domain.Position, stats domain.AggregateStats) {
	fmt.Println("\n## Stored Positions")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Opened\tSymbol\tSide\tEntry\tExit\tPnL\tStatus\tReason\tStrategy")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%s\t%s\t%s\n",
			p.OpenedAt.Format("2006-01-02 15:04"), p.Symbol, p.Side, p.EntryPrice, p.ExitPrice, p.PnL, p.Status, p.CloseReason, p.Strategy)
	}
	w.Flush()

	fmt.Printf("\nClosed: %d  Winners: %d  Losers: %d  WinRate: %.2f%%  TotalPnL: %.2f  AvgWin: %.2f  AvgLoss: %.2f\n",
		stats.Total, stats.Winners, stats.Losers, stats.WinRate, stats.TotalPnL, stats.AvgWin, stats.AvgLoss)
}
