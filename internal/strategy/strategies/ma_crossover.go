package strategies

import (
	"fmt"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/strategy/indicators"
)

// MACrossoverConfig holds the fast and slow SMA periods.
type MACrossoverConfig struct {
	FastPeriod int
	SlowPeriod int
}

// DefaultMACrossoverConfig returns the 50/200 golden cross setup.
func DefaultMACrossoverConfig() MACrossoverConfig {
	return MACrossoverConfig{FastPeriod: 50, SlowPeriod: 200}
}

// MACrossover trades golden and death crosses of two simple moving averages.
// The slow average is used as the stop.
type MACrossover struct {
	cfg MACrossoverConfig
}

const (
	crossBuyTargetFactor  = 1.05
	crossSellTargetFactor = 0.95
)

func NewMACrossover(cfg MACrossoverConfig) (*MACrossover, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("moving average periods must be positive")
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("fast MA period %d must be below slow MA period %d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	return &MACrossover{cfg: cfg}, nil
}

func (s *MACrossover) Name() string { return "MA Crossover" }

func (s *MACrossover) RequiredBars() int { return s.cfg.SlowPeriod + 1 }

func (s *MACrossover) GenerateSignal(bars []*domain.Kline) domain.Signal {
	if len(bars) < s.RequiredBars() {
		return domain.Hold(s.Name())
	}
	closes := domain.Closes(bars)
	fast, err := indicators.SMA(closes, s.cfg.FastPeriod)
	if err != nil {
		return domain.Hold(s.Name())
	}
	slow, err := indicators.SMA(closes, s.cfg.SlowPeriod)
	if err != nil {
		return domain.Hold(s.Name())
	}
	curFast, _ := indicators.Last(fast)
	prevFast, _ := indicators.Prev(fast)
	curSlow, _ := indicators.Last(slow)
	prevSlow, _ := indicators.Prev(slow)
	ind := map[string]float64{"fast_ma": curFast, "slow_ma": curSlow}

	price := closes[len(closes)-1]
	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return newSignal(s.Name(), domain.ActionBuy, curSlow, price*crossBuyTargetFactor, ind)
	case prevFast >= prevSlow && curFast < curSlow:
		return newSignal(s.Name(), domain.ActionSell, curSlow, price*crossSellTargetFactor, ind)
	}
	return hold(s.Name(), ind)
}

func (s *MACrossover) Indicators(bars []*domain.Kline) map[string]float64 {
	if len(bars) < s.cfg.SlowPeriod {
		return map[string]float64{}
	}
	closes := domain.Closes(bars)
	fast, _ := indicators.SMA(closes, s.cfg.FastPeriod)
	slow, _ := indicators.SMA(closes, s.cfg.SlowPeriod)
	curFast, _ := indicators.Last(fast)
	curSlow, _ := indicators.Last(slow)
	return map[string]float64{"fast_ma": curFast, "slow_ma": curSlow}
}
