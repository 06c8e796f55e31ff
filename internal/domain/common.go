package domain

// Side represents the direction of a position (long or short).
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonManual     CloseReason = "manual"
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonShutdown   CloseReason = "shutdown"
)

// Valid reports whether r is one of the known close reasons.
func (r CloseReason) Valid() bool {
	switch r {
	case CloseReasonManual, CloseReasonStopLoss, CloseReasonTakeProfit, CloseReasonShutdown:
		return true
	}
	return false
}

// TradingMode selects how the engine treats open positions on shutdown.
type TradingMode string

const (
	ModePaper TradingMode = "paper" // Simulated execution, positions are closed on shutdown
	ModeLive  TradingMode = "live"  // Positions are left open on shutdown
)

// Float returns a pointer to v. Used for the optional price levels.
func Float(v float64) *float64 {
	return &v
}
