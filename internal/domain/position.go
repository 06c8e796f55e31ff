package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a tracked trade from open to close.
type Position struct {
	ID           string         // Opaque unique identifier (uuid)
	Symbol       string         // Trading symbol (e.g., "BTCUSDT")
	Side         Side           // long or short
	Size         float64        // Units of the base asset, always positive
	EntryPrice   float64        // Price at which the position was entered
	CurrentPrice float64        // Last observed price while open
	ExitPrice    float64        // Price at which the position was exited (0 if open)
	StopLoss     *float64       // Optional stop-loss level
	TakeProfit   *float64       // Optional take-profit level
	Strategy     string         // Name of the strategy that opened it
	Status       PositionStatus // open or closed
	OpenedAt     time.Time
	ClosedAt     *time.Time
	PnL          float64 // Unrealized while open, realized once closed
	PnLPercent   float64
	CloseReason  CloseReason // Empty while open
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	c := *p
	if p.StopLoss != nil {
		c.StopLoss = Float(*p.StopLoss)
	}
	if p.TakeProfit != nil {
		c.TakeProfit = Float(*p.TakeProfit)
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// StopLossHit reports whether price breaches the stop level for the position's side.
func (p *Position) StopLossHit(price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == Short {
		return price >= *p.StopLoss
	}
	return price <= *p.StopLoss
}

// TakeProfitHit reports whether price reaches the target for the position's side.
func (p *Position) TakeProfitHit(price float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == Short {
		return price <= *p.TakeProfit
	}
	return price >= *p.TakeProfit
}

// CalculatePnL returns the side-aware profit and percent move for an exit at price.
// long: (exit-entry)*size, short: (entry-exit)*size.
func CalculatePnL(side Side, entry, exit, size float64) (pnl float64, pnlPercent float64) {
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	move := x.Sub(e)
	if side == Short {
		move = e.Sub(x)
	}
	pnl = move.Mul(decimal.NewFromFloat(size)).InexactFloat64()
	if e.IsZero() {
		return pnl, 0
	}
	pnlPercent = move.Div(e).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return pnl, pnlPercent
}

// MarkToMarket refreshes CurrentPrice and the unrealized PnL of an open position.
func (p *Position) MarkToMarket(price float64) {
	p.CurrentPrice = price
	p.PnL, p.PnLPercent = CalculatePnL(p.Side, p.EntryPrice, price, p.Size)
}
