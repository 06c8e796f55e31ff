package optimization

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy"
	"tradeEngine/internal/strategy/backtesting"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// targetStrategy buys once, on the first evaluated window, with a take
// profit target percent above the last close.
type targetStrategy struct {
	target float64
}

func (s *targetStrategy) Name() string      { return "target" }
func (s *targetStrategy) RequiredBars() int { return 1 }
func (s *targetStrategy) GenerateSignal(bars []*domain.Kline) domain.Signal {
	if len(bars) != 3 {
		return domain.Hold(s.Name())
	}
	price := bars[len(bars)-1].Close
	return domain.Signal{Action: domain.ActionBuy, Strategy: s.Name(), TakeProfit: domain.Float(price * (1 + s.target/100))}
}

func testBars(n int, price func(i int) float64) map[string][]*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Kline, n)
	for i := range bars {
		p := price(i)
		bars[i] = &domain.Kline{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Symbol:   "BTCUSDT",
			Interval: "1h",
			Open:     p,
			High:     p,
			Low:      p,
			Close:    p,
		}
	}
	return map[string][]*domain.Kline{"BTCUSDT": bars}
}

func backtestConfig(lookback int) backtesting.Config {
	cfg := backtesting.DefaultConfig()
	cfg.Lookback = lookback
	return cfg
}

func TestOptimizer_Combinations(t *testing.T) {
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "period", Min: 10, Max: 14, Step: 2, IsInt: true},
			{Name: "threshold", Min: 0.1, Max: 0.3, Step: 0.1},
		},
		Backtest: backtestConfig(3),
	}, func(map[string]float64) (ports.Strategy, error) { return &targetStrategy{}, nil }, mockLogger{})
	require.NoError(t, err)

	combinations := opt.Combinations()
	require.Len(t, combinations, 9)
	seen := make(map[string]bool)
	for _, c := range combinations {
		assert.Contains(t, []float64{10, 12, 14}, c["period"])
		assert.InDelta(t, 0.2, c["threshold"], 0.1+1e-9)
		seen[formatParams(c)] = true
	}
	assert.Len(t, seen, 9)
}

func TestParameterRange_IntRoundingDeduplicates(t *testing.T) {
	r := ParameterRange{Name: "period", Min: 1, Max: 2, Step: 0.4, IsInt: true}
	assert.Equal(t, []float64{1, 2}, r.values())
}

func TestNewOptimizer_Validation(t *testing.T) {
	factory := func(map[string]float64) (ports.Strategy, error) { return &targetStrategy{}, nil }
	tests := []struct {
		name   string
		ranges []ParameterRange
	}{
		{name: "no ranges"},
		{name: "zero step", ranges: []ParameterRange{{Name: "a", Min: 1, Max: 2}}},
		{name: "inverted", ranges: []ParameterRange{{Name: "a", Min: 3, Max: 2, Step: 1}}},
		{name: "duplicate", ranges: []ParameterRange{{Name: "a", Min: 1, Max: 2, Step: 1}, {Name: "a", Min: 1, Max: 2, Step: 1}}},
		{name: "unnamed", ranges: []ParameterRange{{Min: 1, Max: 2, Step: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOptimizer(OptimizerConfig{ParameterRanges: tt.ranges, Backtest: backtestConfig(3)}, factory, mockLogger{})
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
		})
	}
}

func TestOptimizer_OptimizeRanksResults(t *testing.T) {
	factory := func(params map[string]float64) (ports.Strategy, error) {
		if params["target"] == 2 {
			return nil, errors.New("rejected")
		}
		return &targetStrategy{target: params["target"]}, nil
	}
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "target", Min: 1, Max: 4, Step: 1, IsInt: true}},
		Backtest:        backtestConfig(3),
		Workers:         2,
	}, factory, mockLogger{})
	require.NoError(t, err)

	results, err := opt.Optimize(context.Background(), []string{"BTCUSDT"}, testBars(6, func(int) float64 { return 100 }))
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 4.0, results[0].Parameters["target"])
	assert.Equal(t, 3.0, results[1].Parameters["target"])
	assert.Equal(t, 1.0, results[2].Parameters["target"])
	for _, r := range results {
		assert.Equal(t, int64(42), r.Report.Seed)
		assert.Equal(t, 1, r.Report.TotalTrades)
	}
	assert.Greater(t, results[0].Report.ReturnPercent, results[1].Report.ReturnPercent)
}

func TestOptimizer_CustomScore(t *testing.T) {
	factory := func(params map[string]float64) (ports.Strategy, error) {
		return &targetStrategy{target: params["target"]}, nil
	}
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "target", Min: 1, Max: 3, Step: 1}},
		Backtest:        backtestConfig(3),
		ScoreFunction:   func(r *domain.BacktestReport) float64 { return -r.ReturnPercent },
	}, factory, mockLogger{})
	require.NoError(t, err)

	results, err := opt.Optimize(context.Background(), []string{"BTCUSDT"}, testBars(6, func(int) float64 { return 100 }))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1.0, results[0].Parameters["target"])
	assert.Equal(t, -results[0].Report.ReturnPercent, results[0].Score)
}

func TestOptimizer_RegistryFactoryIsDeterministic(t *testing.T) {
	factory := func(params map[string]float64) (ports.Strategy, error) {
		return strategy.FromParams("rsi", params)
	}
	cfg := OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "period", Min: 5, Max: 9, Step: 2, IsInt: true},
			{Name: "oversold", Min: 25, Max: 35, Step: 5},
		},
		Backtest: backtestConfig(20),
		Workers:  3,
	}
	bars := testBars(300, func(i int) float64 { return 100 + 10*math.Sin(float64(i)/6) })

	run := func() []OptimizationResult {
		opt, err := NewOptimizer(cfg, factory, mockLogger{})
		require.NoError(t, err)
		results, err := opt.Optimize(context.Background(), []string{"BTCUSDT"}, bars)
		require.NoError(t, err)
		return results
	}

	first, second := run(), run()
	require.Len(t, first, 9)
	require.Len(t, second, 9)
	for i := range first {
		assert.Equal(t, first[i].Parameters, second[i].Parameters)
		assert.Equal(t, first[i].Report.FinalBalance, second[i].Report.FinalBalance)
		if i > 0 {
			assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
		}
	}
}

func TestOptimizer_Canceled(t *testing.T) {
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "target", Min: 1, Max: 3, Step: 1}},
		Backtest:        backtestConfig(3),
	}, func(map[string]float64) (ports.Strategy, error) { return &targetStrategy{}, nil }, mockLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = opt.Optimize(ctx, []string{"BTCUSDT"}, testBars(6, func(int) float64 { return 100 }))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
