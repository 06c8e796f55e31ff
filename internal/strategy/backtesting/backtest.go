package backtesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy/analytics"
)

// Config holds configuration for backtesting
type Config struct {
	InitialBalance     float64
	Lookback           int     // Bars required before the first evaluation
	RiskPercent        float64 // Fraction of balance risked per trade
	NoStopRiskDistance float64 // Assumed stop distance as a fraction of price when a signal has none
	MaxBalanceFraction float64 // Max notional as a fraction of balance
	MaxNotional        float64 // Absolute notional cap per trade
	ExitBandLow        float64 // Lower bound of the random exit multiplier
	ExitBandHigh       float64 // Upper bound of the random exit multiplier
	DefaultTarget      float64 // Exit multiplier with neither stop nor target
	Seed               int64
}

// DefaultConfig returns the standard replay parameters.
func DefaultConfig() Config {
	return Config{
		InitialBalance:     10000,
		Lookback:           200,
		RiskPercent:        0.01,
		NoStopRiskDistance: 0.02,
		MaxBalanceFraction: 0.1,
		MaxNotional:        1000,
		ExitBandLow:        0.99,
		ExitBandHigh:       1.03,
		DefaultTarget:      1.02,
		Seed:               42,
	}
}

// Validate checks the configuration for values the replay cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.InitialBalance <= 0 {
		errs = append(errs, errors.New("initial balance must be positive"))
	}
	if c.Lookback < 1 {
		errs = append(errs, errors.New("lookback must be at least 1"))
	}
	if c.RiskPercent <= 0 || c.RiskPercent > 1 {
		errs = append(errs, errors.New("risk percent must be in (0, 1]"))
	}
	if c.NoStopRiskDistance <= 0 {
		errs = append(errs, errors.New("no-stop risk distance must be positive"))
	}
	if c.MaxBalanceFraction <= 0 || c.MaxNotional <= 0 {
		errs = append(errs, errors.New("notional caps must be positive"))
	}
	if c.ExitBandLow <= 0 || c.ExitBandHigh < c.ExitBandLow {
		errs = append(errs, errors.New("exit band must satisfy 0 < low <= high"))
	}
	if c.DefaultTarget <= 0 {
		errs = append(errs, errors.New("default target must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ports.ErrConfigurationError, errors.Join(errs...))
	}
	return nil
}

// Backtester replays strategies over historical bars. A Backtester is not
// safe for concurrent use; the optimizer builds one per run.
type Backtester struct {
	cfg        Config
	strategies []ports.Strategy
	logger     ports.Logger
}

// NewBacktester creates a Backtester for the given strategies.
func NewBacktester(cfg Config, strategies []ports.Strategy, logger ports.Logger) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	return &Backtester{cfg: cfg, strategies: strategies, logger: logger}, nil
}

// Config returns the configuration the backtester runs with.
func (b *Backtester) Config() Config {
	return b.cfg
}

// Run simulates every strategy over the bars of each symbol, in the order of
// symbols. Symbols with fewer than Lookback bars are skipped.
func (b *Backtester) Run(ctx context.Context, symbols []string, bars map[string][]*domain.Kline) (*domain.BacktestReport, error) {
	op := "Backtester.Run"
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	balance := b.cfg.InitialBalance
	trades := make([]*domain.Trade, 0)
	equity := make([]float64, 0)

	b.logger.Info(ctx, op+": Starting backtest", map[string]interface{}{
		"symbols":         symbols,
		"strategies":      len(b.strategies),
		"initial_balance": balance,
		"seed":            b.cfg.Seed,
	})

	for _, symbol := range symbols {
		series := bars[symbol]
		if len(series) < b.cfg.Lookback {
			b.logger.Warn(ctx, op+": Not enough bars, skipping symbol", map[string]interface{}{
				"symbol":   symbol,
				"bars":     len(series),
				"lookback": b.cfg.Lookback,
			})
			continue
		}
		if err := domain.ValidateSeries(series); err != nil {
			return nil, fmt.Errorf("%s: %w: %s: %w", op, ports.ErrDataUnavailable, symbol, err)
		}

		for i := b.cfg.Lookback; i < len(series); i++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
			}
			window := series[:i]
			bar := series[i]

			for _, strat := range b.strategies {
				signal := strat.GenerateSignal(window)
				if signal.Action == domain.ActionHold {
					continue
				}
				if err := signal.Validate(bar.Close); err != nil {
					b.logger.Debug(ctx, op+": Ignoring invalid signal", map[string]interface{}{
						"symbol":   symbol,
						"strategy": strat.Name(),
						"error":    err.Error(),
					})
					continue
				}
				trade := b.simulate(rng, symbol, signal, bar, balance)
				if trade == nil {
					continue
				}
				balance += trade.PnL
				trade.Balance = balance
				trades = append(trades, trade)
				equity = append(equity, balance)
			}
		}
	}

	report := buildReport(b.cfg, trades, equity)
	b.logger.Info(ctx, op+": Backtest finished", map[string]interface{}{
		"trades":        report.TotalTrades,
		"final_balance": report.FinalBalance,
		"win_rate":      report.WinRate,
		"max_drawdown":  report.MaxDrawdown,
		"sharpe_ratio":  report.SharpeRatio,
	})
	return report, nil
}

// PositionSize applies the per-trade risk budget and the notional cap.
// A stop at the entry price yields 0.
func (b *Backtester) PositionSize(price float64, stopLoss *float64, balance float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	risk := balance * b.cfg.RiskPercent
	var size float64
	if stopLoss != nil {
		distance := math.Abs(price - *stopLoss)
		if distance == 0 {
			return 0
		}
		size = risk / distance
	} else {
		size = risk / (price * b.cfg.NoStopRiskDistance)
	}
	maxSize := math.Min(balance*b.cfg.MaxBalanceFraction, b.cfg.MaxNotional) / price
	return math.Min(size, maxSize)
}

// exitPrice picks where a simulated trade settles.
func (b *Backtester) exitPrice(rng *rand.Rand, price float64, signal domain.Signal) float64 {
	switch {
	case signal.TakeProfit != nil:
		return *signal.TakeProfit
	case signal.StopLoss != nil:
		return price * (b.cfg.ExitBandLow + rng.Float64()*(b.cfg.ExitBandHigh-b.cfg.ExitBandLow))
	default:
		return price * b.cfg.DefaultTarget
	}
}

func (b *Backtester) simulate(rng *rand.Rand, symbol string, signal domain.Signal, bar *domain.Kline, balance float64) *domain.Trade {
	price := bar.Close
	size := b.PositionSize(price, signal.StopLoss, balance)
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return nil
	}
	side := signal.Action.Side()
	exit := b.exitPrice(rng, price, signal)
	pnl, _ := domain.CalculatePnL(side, price, exit, size)

	return &domain.Trade{
		Symbol:     symbol,
		Strategy:   signal.Strategy,
		Side:       side,
		EntryPrice: price,
		ExitPrice:  exit,
		Size:       size,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		PnL:        pnl,
		EntryTime:  bar.OpenTime,
	}
}

func buildReport(cfg Config, trades []*domain.Trade, equity []float64) *domain.BacktestReport {
	metrics := analytics.AnalyzePerformance(trades, cfg.InitialBalance)
	return &domain.BacktestReport{
		InitialBalance: cfg.InitialBalance,
		FinalBalance:   metrics.FinalBalance,
		TotalTrades:    metrics.TotalTrades,
		WinningTrades:  metrics.WinningTrades,
		LosingTrades:   metrics.LosingTrades,
		WinRate:        metrics.WinRate,
		TotalPnL:       metrics.TotalPnL,
		ReturnPercent:  metrics.ReturnPercent,
		MaxDrawdown:    metrics.MaxDrawdown,
		SharpeRatio:    metrics.SharpeRatio,
		AvgWin:         metrics.AverageWin,
		AvgLoss:        metrics.AverageLoss,
		Seed:           cfg.Seed,
		EquityCurve:    equity,
		Trades:         trades,
	}
}
