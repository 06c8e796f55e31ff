package domain

import (
	"fmt"
	"math"
)

// Action is the recommendation carried by a Signal.
type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Side maps a buy/sell action to the side of the position it opens.
func (a Action) Side() Side {
	if a == ActionSell {
		return Short
	}
	return Long
}

// Signal is a strategy's recommendation for the current bar window.
type Signal struct {
	Action     Action
	Strategy   string
	StopLoss   *float64
	TakeProfit *float64
	Indicators map[string]float64 // Display only
}

// Hold returns a hold signal for the named strategy.
func Hold(strategy string) Signal {
	return Signal{Action: ActionHold, Strategy: strategy}
}

// Validate rejects signals that must not reach the executor.
func (s Signal) Validate(price float64) error {
	switch s.Action {
	case ActionHold:
		return nil
	case ActionBuy, ActionSell:
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("invalid reference price %v", price)
	}
	if s.StopLoss != nil {
		sl := *s.StopLoss
		if sl <= 0 || math.IsNaN(sl) || math.IsInf(sl, 0) {
			return fmt.Errorf("invalid stop loss %v", sl)
		}
		if s.Action == ActionBuy && sl >= price {
			return fmt.Errorf("stop loss %v not below entry %v for buy", sl, price)
		}
		if s.Action == ActionSell && sl <= price {
			return fmt.Errorf("stop loss %v not above entry %v for sell", sl, price)
		}
	}
	if s.TakeProfit != nil {
		tp := *s.TakeProfit
		if tp <= 0 || math.IsNaN(tp) || math.IsInf(tp, 0) {
			return fmt.Errorf("invalid take profit %v", tp)
		}
		if s.Action == ActionBuy && tp <= price {
			return fmt.Errorf("take profit %v not above entry %v for buy", tp, price)
		}
		if s.Action == ActionSell && tp >= price {
			return fmt.Errorf("take profit %v not below entry %v for sell", tp, price)
		}
	}
	return nil
}
