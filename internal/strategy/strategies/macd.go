package strategies

import (
	"fmt"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/strategy/indicators"
)

// MACDConfig holds MACD periods.
type MACDConfig struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// DefaultMACDConfig returns the classic 12/26/9.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
}

// MACDStrategy follows histogram zero crossings.
type MACDStrategy struct {
	cfg MACDConfig
}

func NewMACDStrategy(cfg MACDConfig) (*MACDStrategy, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 || cfg.SignalPeriod <= 0 {
		return nil, fmt.Errorf("MACD periods must be positive")
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("MACD fast period %d must be below slow period %d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	return &MACDStrategy{cfg: cfg}, nil
}

func (s *MACDStrategy) Name() string { return "MACD Trend Following" }

func (s *MACDStrategy) RequiredBars() int { return s.cfg.SlowPeriod + s.cfg.SignalPeriod }

func (s *MACDStrategy) GenerateSignal(bars []*domain.Kline) domain.Signal {
	if len(bars) < s.RequiredBars() {
		return domain.Hold(s.Name())
	}
	closes := domain.Closes(bars)
	m, err := indicators.MACD(closes, s.cfg.FastPeriod, s.cfg.SlowPeriod, s.cfg.SignalPeriod)
	if err != nil {
		return domain.Hold(s.Name())
	}
	cur, ok := indicators.Last(m.Histogram)
	prev, okPrev := indicators.Prev(m.Histogram)
	if !ok || !okPrev {
		return domain.Hold(s.Name())
	}
	line, _ := indicators.Last(m.Line)
	sig, _ := indicators.Last(m.Signal)
	ind := map[string]float64{"macd": line, "signal": sig, "histogram": cur}

	price := closes[len(closes)-1]
	switch {
	case crossedAbove(prev, cur, 0):
		return percentSignal(s.Name(), domain.ActionBuy, price, ind)
	case crossedBelow(prev, cur, 0):
		return percentSignal(s.Name(), domain.ActionSell, price, ind)
	}
	return hold(s.Name(), ind)
}

func (s *MACDStrategy) Indicators(bars []*domain.Kline) map[string]float64 {
	if len(bars) < s.RequiredBars() {
		return map[string]float64{}
	}
	m, err := indicators.MACD(domain.Closes(bars), s.cfg.FastPeriod, s.cfg.SlowPeriod, s.cfg.SignalPeriod)
	if err != nil {
		return map[string]float64{}
	}
	line, _ := indicators.Last(m.Line)
	sig, _ := indicators.Last(m.Signal)
	hist, _ := indicators.Last(m.Histogram)
	return map[string]float64{"macd": line, "signal": sig, "histogram": hist}
}
