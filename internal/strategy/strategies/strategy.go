// Package strategies holds the signal generators run by the engine and the
// backtester. Every strategy is a pure function of its bar window.
package strategies

import (
	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

// Default stop and target multipliers for percentage based exits.
const (
	buyStopFactor    = 0.98
	buyTargetFactor  = 1.04
	sellStopFactor   = 1.02
	sellTargetFactor = 0.96
)

// crossedAbove reports prev <= level < cur.
func crossedAbove(prev, cur, level float64) bool {
	return prev <= level && cur > level
}

// crossedBelow reports prev >= level > cur.
func crossedBelow(prev, cur, level float64) bool {
	return prev >= level && cur < level
}

func newSignal(name string, action domain.Action, stop, target float64, indicators map[string]float64) domain.Signal {
	return domain.Signal{
		Action:     action,
		Strategy:   name,
		StopLoss:   domain.Float(stop),
		TakeProfit: domain.Float(target),
		Indicators: indicators,
	}
}

func hold(name string, indicators map[string]float64) domain.Signal {
	s := domain.Hold(name)
	s.Indicators = indicators
	return s
}

// percentSignal builds a buy or sell signal with the default 2% stop and 4% target.
func percentSignal(name string, action domain.Action, price float64, indicators map[string]float64) domain.Signal {
	if action == domain.ActionSell {
		return newSignal(name, action, price*sellStopFactor, price*sellTargetFactor, indicators)
	}
	return newSignal(name, action, price*buyStopFactor, price*buyTargetFactor, indicators)
}

var (
	_ ports.Strategy = (*RSIStrategy)(nil)
	_ ports.Strategy = (*MACDStrategy)(nil)
	_ ports.Strategy = (*BollingerStrategy)(nil)
	_ ports.Strategy = (*MACrossover)(nil)

	_ ports.IndicatorDisplayer = (*RSIStrategy)(nil)
	_ ports.IndicatorDisplayer = (*MACDStrategy)(nil)
	_ ports.IndicatorDisplayer = (*BollingerStrategy)(nil)
	_ ports.IndicatorDisplayer = (*MACrossover)(nil)
)
