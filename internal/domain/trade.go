package domain

import "time"

// Trade represents a simulated round trip produced by the backtester.
type Trade struct {
	Symbol     string
	Strategy   string
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	StopLoss   *float64
	TakeProfit *float64
	PnL        float64
	EntryTime  time.Time // Open time of the bar the trade was simulated on
	Balance    float64   // Balance after the trade settled
}

// BacktestReport is the aggregate result of one backtest run.
type BacktestReport struct {
	InitialBalance float64
	FinalBalance   float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64 // Percent
	TotalPnL       float64
	ReturnPercent  float64
	MaxDrawdown    float64 // Percent of peak
	SharpeRatio    float64
	AvgWin         float64
	AvgLoss        float64
	Seed           int64
	EquityCurve    []float64
	Trades         []*Trade
}
