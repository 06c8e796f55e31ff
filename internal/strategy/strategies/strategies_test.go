package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/domain"
)

func barsFrom(closes ...float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * time.Hour)
		bars[i] = &domain.Kline{OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond),
			Symbol: "BTCUSDT", Interval: "1h", Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// signalsOver slides a growing window over bars and returns the action at each index.
func signalsOver(s interface {
	GenerateSignal([]*domain.Kline) domain.Signal
}, bars []*domain.Kline) []domain.Action {
	out := make([]domain.Action, len(bars))
	for i := range bars {
		out[i] = s.GenerateSignal(bars[:i+1]).Action
	}
	return out
}

func countAction(actions []domain.Action, a domain.Action) int {
	n := 0
	for _, x := range actions {
		if x == a {
			n++
		}
	}
	return n
}

func TestRSIStrategy_BuyFiresOnceOnCrossing(t *testing.T) {
	s, err := NewRSIStrategy(RSIConfig{Period: 3, Oversold: 30, Overbought: 70})
	require.NoError(t, err)

	// RSI sits at 0, then climbs through 20 and 38 to 54 and beyond.
	bars := barsFrom(100, 98, 96, 94, 92, 90, 91, 92, 93, 94, 95)
	actions := signalsOver(s, bars)

	assert.Equal(t, 1, countAction(actions, domain.ActionBuy))
	assert.Equal(t, 0, countAction(actions, domain.ActionSell))
	assert.Equal(t, domain.ActionBuy, actions[7])

	sig := s.GenerateSignal(bars[:8])
	assert.Equal(t, "RSI Mean Reversion", sig.Strategy)
	require.NotNil(t, sig.StopLoss)
	require.NotNil(t, sig.TakeProfit)
	assert.InDelta(t, 92*0.98, *sig.StopLoss, 1e-9)
	assert.InDelta(t, 92*1.04, *sig.TakeProfit, 1e-9)
	assert.InDelta(t, 38.4615, sig.Indicators["rsi"], 1e-3)
}

func TestRSIStrategy_SellOnOverboughtExit(t *testing.T) {
	s, err := NewRSIStrategy(RSIConfig{Period: 3, Oversold: 30, Overbought: 70})
	require.NoError(t, err)

	bars := barsFrom(100, 102, 104, 106, 108, 110, 109, 108, 107)
	actions := signalsOver(s, bars)

	assert.Equal(t, 1, countAction(actions, domain.ActionSell))
	assert.Equal(t, domain.ActionSell, actions[7])

	sig := s.GenerateSignal(bars[:8])
	assert.InDelta(t, 108*1.02, *sig.StopLoss, 1e-9)
	assert.InDelta(t, 108*0.96, *sig.TakeProfit, 1e-9)
}

func TestRSIStrategy_InsufficientBars(t *testing.T) {
	s, err := NewRSIStrategy(DefaultRSIConfig())
	require.NoError(t, err)
	assert.Equal(t, 15, s.RequiredBars())

	sig := s.GenerateSignal(barsFrom(repeat(100, 14)...))
	assert.Equal(t, domain.ActionHold, sig.Action)
	assert.Nil(t, sig.StopLoss)
	assert.Empty(t, s.Indicators(barsFrom(1, 2)))
}

func TestMACDStrategy(t *testing.T) {
	s, err := NewMACDStrategy(DefaultMACDConfig())
	require.NoError(t, err)
	assert.Equal(t, 35, s.RequiredBars())

	up := append(repeat(50, 40), 51, 52, 53, 54, 55)
	actions := signalsOver(s, barsFrom(up...))
	assert.Equal(t, domain.ActionHold, actions[39])
	assert.Equal(t, domain.ActionBuy, actions[40])
	assert.Equal(t, 1, countAction(actions, domain.ActionBuy))

	sig := s.GenerateSignal(barsFrom(up[:41]...))
	assert.InDelta(t, 51*0.98, *sig.StopLoss, 1e-9)
	assert.InDelta(t, 51*1.04, *sig.TakeProfit, 1e-9)
	assert.Greater(t, sig.Indicators["histogram"], 0.0)

	down := append(repeat(50, 40), 49, 48, 47)
	actions = signalsOver(s, barsFrom(down...))
	assert.Equal(t, domain.ActionSell, actions[40])
	assert.Equal(t, 1, countAction(actions, domain.ActionSell))

	_, err = NewMACDStrategy(MACDConfig{FastPeriod: 26, SlowPeriod: 12, SignalPeriod: 9})
	assert.Error(t, err)
}

func TestBollingerStrategy(t *testing.T) {
	s, err := NewBollingerStrategy(DefaultBollingerConfig())
	require.NoError(t, err)
	assert.Equal(t, 21, s.RequiredBars())

	tests := []struct {
		name       string
		last       float64
		wantAction domain.Action
		wantStop   float64
		wantTarget float64
	}{
		{name: "break below lower band", last: 90, wantAction: domain.ActionBuy, wantStop: 90 * 0.98, wantTarget: 99.5},
		{name: "break above upper band", last: 110, wantAction: domain.ActionSell, wantStop: 110 * 1.02, wantTarget: 100.5},
		{name: "inside bands", last: 100, wantAction: domain.ActionHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := s.GenerateSignal(barsFrom(append(repeat(100, 20), tt.last)...))
			assert.Equal(t, tt.wantAction, sig.Action)
			if tt.wantAction == domain.ActionHold {
				assert.Nil(t, sig.StopLoss)
				return
			}
			assert.InDelta(t, tt.wantStop, *sig.StopLoss, 1e-9)
			assert.InDelta(t, tt.wantTarget, *sig.TakeProfit, 1e-9)
		})
	}
}

func TestBollingerStrategy_Indicators(t *testing.T) {
	s, err := NewBollingerStrategy(DefaultBollingerConfig())
	require.NoError(t, err)

	ind := s.Indicators(barsFrom(repeat(100, 20)...))
	assert.InDelta(t, 100, ind["middle_band"], 1e-9)
	assert.NotContains(t, ind, "atr")

	ind = s.Indicators(barsFrom(append(repeat(100, 20), 110)...))
	assert.InDelta(t, 0.5, ind["atr"], 1e-9)
	assert.Greater(t, ind["upper_band"], ind["middle_band"])
}

func TestMACrossover(t *testing.T) {
	s, err := NewMACrossover(MACrossoverConfig{FastPeriod: 2, SlowPeriod: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, s.RequiredBars())

	golden := s.GenerateSignal(barsFrom(10, 10, 10, 10, 14))
	assert.Equal(t, domain.ActionBuy, golden.Action)
	assert.InDelta(t, 11, *golden.StopLoss, 1e-9)
	assert.InDelta(t, 14.7, *golden.TakeProfit, 1e-9)
	assert.NoError(t, golden.Validate(14))

	death := s.GenerateSignal(barsFrom(10, 10, 10, 10, 6))
	assert.Equal(t, domain.ActionSell, death.Action)
	assert.InDelta(t, 9, *death.StopLoss, 1e-9)
	assert.InDelta(t, 5.7, *death.TakeProfit, 1e-9)

	// Fast already above slow: no new crossing.
	assert.Equal(t, domain.ActionHold, s.GenerateSignal(barsFrom(10, 10, 10, 14, 15)).Action)

	_, err = NewMACrossover(MACrossoverConfig{FastPeriod: 200, SlowPeriod: 50})
	assert.Error(t, err)
}

func TestStrategiesArePure(t *testing.T) {
	rsi, _ := NewRSIStrategy(RSIConfig{Period: 3, Oversold: 30, Overbought: 70})
	bars := barsFrom(100, 98, 96, 94, 92, 90, 91, 92)
	first := rsi.GenerateSignal(bars)
	second := rsi.GenerateSignal(bars)
	assert.Equal(t, first, second)
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewRSIStrategy(RSIConfig{Period: 14, Oversold: 70, Overbought: 30})
	assert.Error(t, err)
	_, err = NewRSIStrategy(RSIConfig{Period: 1, Oversold: 30, Overbought: 70})
	assert.Error(t, err)
	_, err = NewBollingerStrategy(BollingerConfig{Period: 20, StdDev: 0})
	assert.Error(t, err)
	_, err = NewMACDStrategy(MACDConfig{})
	assert.Error(t, err)
}
