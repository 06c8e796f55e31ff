package domain

import "time"

// RiskSummary is a snapshot of the risk manager's state.
type RiskSummary struct {
	DailyPnL           float64
	OpenPositions      int
	MaxPositions       int
	MaxDailyLoss       float64
	RemainingDailyLoss float64
	MaxPositionSize    float64 // Max notional per position
	DailyLimitHit      bool
	LastReset          time.Time
}

// AggregateStats summarizes closed positions.
type AggregateStats struct {
	Total    int
	Winners  int
	Losers   int
	WinRate  float64 // Percent
	TotalPnL float64
	AvgWin   float64
	AvgLoss  float64
}
