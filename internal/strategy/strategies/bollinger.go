package strategies

import (
	"fmt"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/strategy/indicators"
)

// BollingerConfig holds the band period and width.
type BollingerConfig struct {
	Period int
	StdDev float64
}

// DefaultBollingerConfig returns 20 periods at 2 standard deviations.
func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{Period: 20, StdDev: 2}
}

// BollingerStrategy trades closes that break outside the bands, targeting
// a return to the middle band.
type BollingerStrategy struct {
	cfg BollingerConfig
}

func NewBollingerStrategy(cfg BollingerConfig) (*BollingerStrategy, error) {
	if cfg.Period <= 1 {
		return nil, fmt.Errorf("bollinger period must be greater than 1, got %d", cfg.Period)
	}
	if cfg.StdDev <= 0 {
		return nil, fmt.Errorf("bollinger standard deviation must be positive, got %v", cfg.StdDev)
	}
	return &BollingerStrategy{cfg: cfg}, nil
}

func (s *BollingerStrategy) Name() string { return "Bollinger Bands Breakout" }

func (s *BollingerStrategy) RequiredBars() int { return s.cfg.Period + 1 }

// GenerateSignal compares the previous and current close against the current bands.
func (s *BollingerStrategy) GenerateSignal(bars []*domain.Kline) domain.Signal {
	if len(bars) < s.RequiredBars() {
		return domain.Hold(s.Name())
	}
	closes := domain.Closes(bars)
	b, err := indicators.Bollinger(closes, s.cfg.Period, s.cfg.StdDev)
	if err != nil {
		return domain.Hold(s.Name())
	}
	upper, _ := indicators.Last(b.Upper)
	middle, _ := indicators.Last(b.Middle)
	lower, _ := indicators.Last(b.Lower)
	ind := map[string]float64{"upper_band": upper, "middle_band": middle, "lower_band": lower}

	price := closes[len(closes)-1]
	prevPrice := closes[len(closes)-2]
	switch {
	case prevPrice >= lower && price < lower:
		return newSignal(s.Name(), domain.ActionBuy, price*buyStopFactor, middle, ind)
	case prevPrice <= upper && price > upper:
		return newSignal(s.Name(), domain.ActionSell, price*sellStopFactor, middle, ind)
	}
	return hold(s.Name(), ind)
}

func (s *BollingerStrategy) Indicators(bars []*domain.Kline) map[string]float64 {
	if len(bars) < s.cfg.Period {
		return map[string]float64{}
	}
	b, err := indicators.Bollinger(domain.Closes(bars), s.cfg.Period, s.cfg.StdDev)
	if err != nil {
		return map[string]float64{}
	}
	upper, _ := indicators.Last(b.Upper)
	middle, _ := indicators.Last(b.Middle)
	lower, _ := indicators.Last(b.Lower)
	out := map[string]float64{"upper_band": upper, "middle_band": middle, "lower_band": lower}
	// ATR over the band period, shown next to the band width.
	if atr, err := indicators.ATR(bars, s.cfg.Period); err == nil {
		if v, ok := indicators.Last(atr); ok {
			out["atr"] = v
		}
	}
	return out
}
