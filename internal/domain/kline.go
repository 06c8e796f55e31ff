package domain

import (
	"fmt"
	"time"
)

// Kline represents a single OHLCV bar.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ValidateSeries checks that bars are ordered oldest first with strictly
// increasing open times.
func ValidateSeries(bars []*Kline) error {
	for i, b := range bars {
		if b == nil {
			return fmt.Errorf("bar %d is nil", i)
		}
		if i > 0 && !b.OpenTime.After(bars[i-1].OpenTime) {
			return fmt.Errorf("bar %d open time %s is not after %s", i, b.OpenTime.Format(time.RFC3339), bars[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts the close prices of bars.
func Closes(bars []*Kline) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
