package strategies

import (
	"fmt"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/strategy/indicators"
)

// RSIConfig holds parameters for RSI mean reversion.
type RSIConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// DefaultRSIConfig returns period 14 with 30/70 levels.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{Period: 14, Oversold: 30, Overbought: 70}
}

// RSIStrategy buys when RSI recovers above the oversold level and sells
// when it falls back below the overbought level.
type RSIStrategy struct {
	cfg RSIConfig
}

// NewRSIStrategy validates cfg and returns the strategy.
func NewRSIStrategy(cfg RSIConfig) (*RSIStrategy, error) {
	if cfg.Period <= 1 {
		return nil, fmt.Errorf("RSI period must be greater than 1, got %d", cfg.Period)
	}
	if cfg.Oversold <= 0 || cfg.Overbought >= 100 || cfg.Oversold >= cfg.Overbought {
		return nil, fmt.Errorf("RSI levels must satisfy 0 < oversold < overbought < 100, got %v/%v", cfg.Oversold, cfg.Overbought)
	}
	return &RSIStrategy{cfg: cfg}, nil
}

func (s *RSIStrategy) Name() string { return "RSI Mean Reversion" }

func (s *RSIStrategy) RequiredBars() int { return s.cfg.Period + 1 }

// GenerateSignal evaluates the RSI crossing on the latest bar.
func (s *RSIStrategy) GenerateSignal(bars []*domain.Kline) domain.Signal {
	if len(bars) < s.RequiredBars() {
		return domain.Hold(s.Name())
	}
	closes := domain.Closes(bars)
	rsi, err := indicators.RSI(closes, s.cfg.Period)
	if err != nil {
		return domain.Hold(s.Name())
	}
	cur, ok := indicators.Last(rsi)
	if !ok {
		return domain.Hold(s.Name())
	}
	ind := map[string]float64{"rsi": cur}
	prev, ok := indicators.Prev(rsi)
	if !ok {
		return hold(s.Name(), ind)
	}

	price := closes[len(closes)-1]
	switch {
	case crossedAbove(prev, cur, s.cfg.Oversold):
		return percentSignal(s.Name(), domain.ActionBuy, price, ind)
	case crossedBelow(prev, cur, s.cfg.Overbought):
		return percentSignal(s.Name(), domain.ActionSell, price, ind)
	}
	return hold(s.Name(), ind)
}

// Indicators returns the current RSI together with the configured levels.
func (s *RSIStrategy) Indicators(bars []*domain.Kline) map[string]float64 {
	if len(bars) < s.RequiredBars() {
		return map[string]float64{}
	}
	rsi, err := indicators.RSI(domain.Closes(bars), s.cfg.Period)
	if err != nil {
		return map[string]float64{}
	}
	cur, _ := indicators.Last(rsi)
	return map[string]float64{
		"rsi":              cur,
		"oversold_level":   s.cfg.Oversold,
		"overbought_level": s.cfg.Overbought,
	}
}
