package risk

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	mu        sync.Mutex
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func testConfig() RiskConfig {
	return RiskConfig{
		MaxPositionSize:     10000,
		MaxPositions:        3,
		MaxDailyLoss:        500,
		RiskPerTradePercent: 1,
	}
}

func newManager(t *testing.T, cfg RiskConfig) (*RiskManager, *mockLogger) {
	t.Helper()
	l := &mockLogger{}
	m, err := NewRiskManager(cfg, l)
	require.NoError(t, err)
	return m, l
}

func TestNewRiskManager_Validation(t *testing.T) {
	_, err := NewRiskManager(testConfig(), nil)
	assert.Error(t, err)

	bad := testConfig()
	bad.MaxPositions = 0
	_, err = NewRiskManager(bad, &mockLogger{})
	assert.Error(t, err)

	bad = testConfig()
	bad.RiskPerTradePercent = 0
	_, err = NewRiskManager(bad, &mockLogger{})
	assert.Error(t, err)
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name     string
		maxSize  float64
		entry    float64
		stop     float64
		balance  float64
		expected float64
	}{
		{name: "fractional risk", maxSize: 10000, entry: 100, stop: 98, balance: 10000, expected: 50},
		{name: "short side stop", maxSize: 10000, entry: 100, stop: 102, balance: 10000, expected: 50},
		{name: "capped by notional", maxSize: 1000, entry: 100, stop: 98, balance: 10000, expected: 10},
		{name: "zero price risk uses cap", maxSize: 1000, entry: 100, stop: 100, balance: 10000, expected: 10},
		{name: "zero entry", maxSize: 1000, entry: 0, stop: 0, balance: 10000, expected: 0},
		{name: "no balance", maxSize: 1000, entry: 100, stop: 98, balance: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxPositionSize = tt.maxSize
			m, _ := newManager(t, cfg)
			assert.InDelta(t, tt.expected, m.CalculatePositionSize(tt.entry, tt.stop, tt.balance), 1e-9)
		})
	}
}

func TestCalculatePositionSize_Bounds(t *testing.T) {
	m, _ := newManager(t, testConfig())
	entries := []float64{0.5, 1, 10, 100, 2500, 60000}
	offsets := []float64{1e-6, 0.01, 0.5, 3, 40}
	balances := []float64{10, 1000, 1e6}

	for _, entry := range entries {
		for _, off := range offsets {
			for _, bal := range balances {
				size := m.CalculatePositionSize(entry, entry-off, bal)
				maxUnits := testConfig().MaxPositionSize / entry
				assert.Greater(t, size, 0.0)
				assert.LessOrEqual(t, size, maxUnits)
				assert.False(t, math.IsInf(size, 0))
			}
		}
	}
}

func TestCanOpenPosition_MaxPositions(t *testing.T) {
	m, _ := newManager(t, testConfig())

	for i := 0; i < 3; i++ {
		assert.True(t, m.CanOpenPosition())
		m.IncrementPositions()
	}
	assert.False(t, m.CanOpenPosition())

	m.DecrementPositions()
	assert.True(t, m.CanOpenPosition())
}

func TestDecrementPositions_FloorsAtZero(t *testing.T) {
	m, _ := newManager(t, testConfig())
	m.DecrementPositions()
	m.DecrementPositions()
	assert.Equal(t, 0, m.Summary().OpenPositions)

	m.IncrementPositions()
	assert.Equal(t, 1, m.Summary().OpenPositions)
}

func TestUpdateDailyPnL_Alert(t *testing.T) {
	m, l := newManager(t, testConfig())
	var alerts []string
	m.SetAlertFunc(func(ctx context.Context, title, message string) {
		alerts = append(alerts, title)
	})

	assert.False(t, m.UpdateDailyPnL(-200))
	assert.True(t, m.CanOpenPosition())

	assert.True(t, m.UpdateDailyPnL(-300))
	assert.False(t, m.CanOpenPosition())
	assert.Len(t, alerts, 1)
	assert.Len(t, l.errorMsgs, 1)

	// Still beyond the limit: no second alert.
	assert.False(t, m.UpdateDailyPnL(-10))
	assert.Len(t, alerts, 1)

	summary := m.Summary()
	assert.InDelta(t, -510, summary.DailyPnL, 1e-9)
	assert.InDelta(t, -10, summary.RemainingDailyLoss, 1e-9)
	assert.True(t, summary.DailyLimitHit)

	m.ResetDaily()
	assert.True(t, m.CanOpenPosition())
	assert.Equal(t, 0.0, m.Summary().DailyPnL)
	assert.False(t, m.Summary().DailyLimitHit)
}

func TestUpdateDailyPnL_ProfitAlsoCounts(t *testing.T) {
	// The gate compares the magnitude of daily P&L, so a large gain blocks too.
	m, _ := newManager(t, testConfig())
	m.UpdateDailyPnL(600)
	assert.False(t, m.CanOpenPosition())
}

func TestCheckRiskLimits(t *testing.T) {
	m, _ := newManager(t, testConfig())
	assert.True(t, m.CheckRiskLimits("BTCUSDT", domain.ActionBuy, 1))
	assert.False(t, m.CheckRiskLimits("BTCUSDT", domain.ActionBuy, 0))
	assert.False(t, m.CheckRiskLimits("BTCUSDT", domain.ActionSell, -1))
	assert.False(t, m.CheckRiskLimits("BTCUSDT", domain.ActionSell, math.Inf(1)))
}

func TestTryReserve_Concurrent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 5
	m, _ := newManager(t, cfg)

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.TryReserve() {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted)
	assert.Equal(t, 5, m.Summary().OpenPositions)

	m.Release()
	assert.True(t, m.TryReserve())
	assert.False(t, m.TryReserve())
}

func TestSetOpenPositions(t *testing.T) {
	m, _ := newManager(t, testConfig())
	m.SetOpenPositions(3)
	assert.False(t, m.CanOpenPosition())
	m.SetOpenPositions(-4)
	assert.Equal(t, 0, m.Summary().OpenPositions)
}
