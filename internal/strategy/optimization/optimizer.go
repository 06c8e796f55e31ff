package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy/backtesting"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

func (p ParameterRange) values() []float64 {
	n := int(math.Floor((p.Max-p.Min)/p.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		v := p.Min + float64(k)*p.Step
		if p.IsInt {
			v = math.Round(v)
		}
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

// StrategyFactory builds a strategy from one parameter combination.
type StrategyFactory func(params map[string]float64) (ports.Strategy, error)

// OptimizationResult holds the results of one parameter combination
type OptimizationResult struct {
	Parameters map[string]float64
	Report     *domain.BacktestReport
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Backtest        backtesting.Config // Shared by every run, seed included
	Workers         int                // Concurrent backtests, defaults to GOMAXPROCS
	ScoreFunction   func(*domain.BacktestReport) float64
}

// Optimizer sweeps a parameter grid through the backtester.
type Optimizer struct {
	config  OptimizerConfig
	factory StrategyFactory
	logger  ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, factory StrategyFactory, logger ports.Logger) (*Optimizer, error) {
	if factory == nil || logger == nil {
		return nil, fmt.Errorf("%w: factory and logger are required", ports.ErrConfigurationError)
	}
	if len(config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("%w: no parameter ranges", ports.ErrConfigurationError)
	}
	seen := make(map[string]bool)
	for _, r := range config.ParameterRanges {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("%w: parameter range without a name", ports.ErrConfigurationError)
		case seen[r.Name]:
			return nil, fmt.Errorf("%w: parameter %q listed twice", ports.ErrConfigurationError, r.Name)
		case r.Step <= 0 || r.Max < r.Min:
			return nil, fmt.Errorf("%w: parameter %q needs step > 0 and max >= min", ports.ErrConfigurationError, r.Name)
		}
		seen[r.Name] = true
	}
	if err := config.Backtest.Validate(); err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config, factory: factory, logger: logger}, nil
}

// Combinations returns every point of the parameter grid.
func (o *Optimizer) Combinations() []map[string]float64 {
	combinations := []map[string]float64{{}}
	for _, r := range o.config.ParameterRanges {
		values := r.values()
		next := make([]map[string]float64, 0, len(combinations)*len(values))
		for _, base := range combinations {
			for _, v := range values {
				combination := make(map[string]float64, len(base)+1)
				for k, bv := range base {
					combination[k] = bv
				}
				combination[r.Name] = v
				next = append(next, combination)
			}
		}
		combinations = next
	}
	return combinations
}

// Optimize backtests every combination and returns the results best first.
// Combinations the factory rejects are skipped.
func (o *Optimizer) Optimize(ctx context.Context, symbols []string, bars map[string][]*domain.Kline) ([]OptimizationResult, error) {
	op := "Optimizer.Optimize"
	combinations := o.Combinations()
	o.logger.Info(ctx, op+": Starting parameter sweep", map[string]interface{}{
		"combinations": len(combinations),
		"workers":      o.config.Workers,
		"seed":         o.config.Backtest.Seed,
	})

	results := make([]*OptimizationResult, len(combinations))
	jobs := make(chan int)
	errCh := make(chan error, len(combinations))
	var wg sync.WaitGroup

	for w := 0; w < o.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := o.evaluate(ctx, combinations[idx], symbols, bars)
				if err != nil {
					errCh <- err
					continue
				}
				results[idx] = result
			}
		}()
	}

feed:
	for idx := range combinations {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
	}
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}

	out := make([]OptimizationResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sortResults(out)

	o.logger.Info(ctx, op+": Parameter sweep finished", map[string]interface{}{
		"evaluated": len(out),
		"skipped":   len(combinations) - len(out),
	})
	return out, nil
}

// evaluate returns nil, nil when the factory rejects the combination.
func (o *Optimizer) evaluate(ctx context.Context, params map[string]float64, symbols []string, bars map[string][]*domain.Kline) (*OptimizationResult, error) {
	strat, err := o.factory(params)
	if err != nil {
		o.logger.Debug(ctx, "Optimizer.evaluate: Skipping parameter combination", map[string]interface{}{
			"params": formatParams(params),
			"error":  err.Error(),
		})
		return nil, nil
	}
	bt, err := backtesting.NewBacktester(o.config.Backtest, []ports.Strategy{strat}, o.logger)
	if err != nil {
		return nil, err
	}
	report, err := bt.Run(ctx, symbols, bars)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("backtest %s: %w", formatParams(params), err)
	}
	return &OptimizationResult{
		Parameters: params,
		Report:     report,
		Score:      o.config.ScoreFunction(report),
	}, nil
}

// sortResults orders by score, then Sharpe, then return, then parameters.
func sortResults(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Report.SharpeRatio != b.Report.SharpeRatio {
			return a.Report.SharpeRatio > b.Report.SharpeRatio
		}
		if a.Report.ReturnPercent != b.Report.ReturnPercent {
			return a.Report.ReturnPercent > b.Report.ReturnPercent
		}
		return formatParams(a.Parameters) < formatParams(b.Parameters)
	})
}

// DefaultScoreFunction ranks by Sharpe ratio.
func DefaultScoreFunction(report *domain.BacktestReport) float64 {
	return report.SharpeRatio
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, ",")
}
