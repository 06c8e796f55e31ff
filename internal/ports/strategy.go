package ports

import "tradeEngine/internal/domain"

// Strategy maps a window of bars to a trading signal.
// Implementations must be pure: the same window always yields the same signal.
type Strategy interface {
	// Name identifies the strategy on positions and notifications.
	Name() string

	// RequiredBars returns the warm-up window. Fewer bars yield a hold signal.
	RequiredBars() int

	// GenerateSignal evaluates the window, most recent bar last.
	GenerateSignal(bars []*domain.Kline) domain.Signal
}

// IndicatorDisplayer is implemented by strategies that expose the indicator
// values behind their decisions.
type IndicatorDisplayer interface {
	Indicators(bars []*domain.Kline) map[string]float64
}
