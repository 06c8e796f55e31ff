package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

// RiskConfig holds the configured limits.
type RiskConfig struct {
	MaxPositionSize     float64 // Max notional per position, in quote currency
	MaxPositions        int     // Max concurrent open positions
	MaxDailyLoss        float64 // Absolute daily P&L magnitude that blocks new positions
	RiskPerTradePercent float64 // Percent of balance risked against the stop distance (e.g. 1 for 1%)
}

// Validate checks the configuration.
func (c RiskConfig) Validate() error {
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("max position size must be positive")
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("max positions must be positive")
	}
	if c.MaxDailyLoss <= 0 {
		return fmt.Errorf("max daily loss must be positive")
	}
	if c.RiskPerTradePercent <= 0 || c.RiskPerTradePercent > 100 {
		return fmt.Errorf("risk per trade percent must be in (0, 100]")
	}
	return nil
}

// AlertFunc receives critical risk alerts.
type AlertFunc func(ctx context.Context, title, message string)

// RiskManager tracks the daily risk budget and open-position count.
// All state is guarded by one mutex; callers share the manager by pointer.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
	alert  AlertFunc
	now    func() time.Time

	mu            sync.Mutex
	dailyPnL      float64
	openPositions int
	limitHit      bool
	lastReset     time.Time
}

// NewRiskManager creates a new risk manager instance.
func NewRiskManager(config RiskConfig, logger ports.Logger) (*RiskManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	return &RiskManager{
		config:    config,
		logger:    logger,
		now:       time.Now,
		lastReset: time.Now().UTC(),
	}, nil
}

// SetAlertFunc installs the hook called when the daily loss limit is crossed.
func (r *RiskManager) SetAlertFunc(fn AlertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alert = fn
}

// CalculatePositionSize sizes a position so that a stop-out loses
// balance*risk% and the notional stays within MaxPositionSize.
// With no price risk (stop == entry) the notional cap is used directly.
func (r *RiskManager) CalculatePositionSize(entryPrice, stopLossPrice, balance float64) float64 {
	if entryPrice <= 0 || balance <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		return 0
	}
	maxUnits := r.config.MaxPositionSize / entryPrice

	priceRisk := math.Abs(entryPrice - stopLossPrice)
	if priceRisk == 0 || math.IsNaN(priceRisk) {
		r.logger.Warn(context.Background(), "Zero price risk, using max position size", map[string]interface{}{"entryPrice": entryPrice})
		return maxUnits
	}

	riskAmount := balance * (r.config.RiskPerTradePercent / 100)
	size := riskAmount / priceRisk
	if math.IsInf(size, 0) || math.IsNaN(size) {
		return maxUnits
	}
	return math.Min(size, maxUnits)
}

// canOpenLocked must be called with r.mu held.
func (r *RiskManager) canOpenLocked() (bool, string) {
	if r.openPositions >= r.config.MaxPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", r.openPositions, r.config.MaxPositions)
	}
	if math.Abs(r.dailyPnL) >= r.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached (%.2f)", r.dailyPnL)
	}
	return true, ""
}

// CanOpenPosition reports whether a new position may be opened right now.
// It is advisory; TryReserve is the authoritative gate.
func (r *RiskManager) CanOpenPosition() bool {
	r.mu.Lock()
	ok, reason := r.canOpenLocked()
	r.mu.Unlock()
	if !ok {
		r.logger.Debug(context.Background(), "Cannot open position", map[string]interface{}{"reason": reason})
	}
	return ok
}

// CheckRiskLimits verifies a prospective trade against the limits.
func (r *RiskManager) CheckRiskLimits(symbol string, action domain.Action, size float64) bool {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		r.logger.Debug(context.Background(), "Rejected non-positive position size", map[string]interface{}{"symbol": symbol, "action": action, "size": size})
		return false
	}
	return r.CanOpenPosition()
}

// TryReserve atomically checks the limits and, if they allow it, counts a new
// open position. A successful reservation must be followed by Release if the
// position is not actually opened.
func (r *RiskManager) TryReserve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, reason := r.canOpenLocked()
	if !ok {
		r.logger.Debug(context.Background(), "Reservation refused", map[string]interface{}{"reason": reason})
		return false
	}
	r.openPositions++
	return true
}

// Release gives back a reservation taken by TryReserve.
func (r *RiskManager) Release() {
	r.DecrementPositions()
}

// IncrementPositions counts one newly opened position.
func (r *RiskManager) IncrementPositions() {
	r.mu.Lock()
	r.openPositions++
	r.mu.Unlock()
}

// DecrementPositions counts one closed position. Floors at zero.
func (r *RiskManager) DecrementPositions() {
	r.mu.Lock()
	if r.openPositions > 0 {
		r.openPositions--
	}
	r.mu.Unlock()
}

// SetOpenPositions overwrites the open count, used when resyncing from the store.
func (r *RiskManager) SetOpenPositions(n int) {
	if n < 0 {
		n = 0
	}
	r.mu.Lock()
	r.openPositions = n
	r.mu.Unlock()
}

// UpdateDailyPnL accumulates realized P&L. It returns true when this update
// crossed the daily loss limit, in which case a critical alert is emitted.
// Open positions are not touched; new ones are blocked by CanOpenPosition.
func (r *RiskManager) UpdateDailyPnL(delta float64) bool {
	r.mu.Lock()
	r.dailyPnL += delta
	daily := r.dailyPnL
	crossed := false
	if math.Abs(daily) >= r.config.MaxDailyLoss {
		crossed = !r.limitHit
		r.limitHit = true
	} else {
		r.limitHit = false
	}
	alert := r.alert
	r.mu.Unlock()

	if crossed {
		msg := fmt.Sprintf("Daily P&L %.2f reached the limit of %.2f", daily, r.config.MaxDailyLoss)
		r.logger.Error(context.Background(), fmt.Errorf("daily loss limit reached"), "CRITICAL: "+msg, map[string]interface{}{"dailyPnL": daily})
		if alert != nil {
			alert(context.Background(), "Daily loss limit reached", msg)
		}
	}
	return crossed
}

// ResetDaily clears the daily P&L at the start of a trading day.
func (r *RiskManager) ResetDaily() {
	r.mu.Lock()
	r.dailyPnL = 0
	r.limitHit = false
	r.lastReset = r.now().UTC()
	r.mu.Unlock()
	r.logger.Info(context.Background(), "Daily risk statistics reset")
}

// LastReset returns the time of the last daily reset.
func (r *RiskManager) LastReset() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReset
}

// Summary returns a snapshot of the current risk state.
func (r *RiskManager) Summary() domain.RiskSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RiskSummary{
		DailyPnL:           r.dailyPnL,
		OpenPositions:      r.openPositions,
		MaxPositions:       r.config.MaxPositions,
		MaxDailyLoss:       r.config.MaxDailyLoss,
		RemainingDailyLoss: r.config.MaxDailyLoss - math.Abs(r.dailyPnL),
		MaxPositionSize:    r.config.MaxPositionSize,
		DailyLimitHit:      r.limitHit,
		LastReset:          r.lastReset,
	}
}
