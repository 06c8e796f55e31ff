package ports

import (
	"time"

	"tradeEngine/internal/domain"
)

// Metrics records engine activity for monitoring.
type Metrics interface {
	SignalGenerated(strategy string, action domain.Action)
	OrderExecuted(symbol string, side domain.Side)
	PositionClosed(symbol string, reason domain.CloseReason, pnl float64)
	TickCompleted(d time.Duration)
	TickError(symbol string)
	SetOpenPositions(n int)
	SetDailyPnL(v float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) SignalGenerated(string, domain.Action)             {}
func (NopMetrics) OrderExecuted(string, domain.Side)                 {}
func (NopMetrics) PositionClosed(string, domain.CloseReason, float64) {}
func (NopMetrics) TickCompleted(time.Duration)                       {}
func (NopMetrics) TickError(string)                                  {}
func (NopMetrics) SetOpenPositions(int)                              {}
func (NopMetrics) SetDailyPnL(float64)                               {}
