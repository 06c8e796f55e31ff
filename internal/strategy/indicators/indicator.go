// Package indicators computes technical indicators as series aligned with
// their input: out[i] is the indicator value using values[0..i], or NaN
// while the indicator is still warming up.
package indicators

import (
	"fmt"
	"math"
)

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s period must be positive, got %d", name, period)
	}
	return nil
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final value of series and whether it is defined.
func Last(series []float64) (float64, bool) {
	return At(series, len(series)-1)
}

// Prev returns the value before the final one and whether it is defined.
func Prev(series []float64) (float64, bool) {
	return At(series, len(series)-2)
}

// At returns series[i] and whether it exists and is not NaN.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) || math.IsNaN(series[i]) {
		return 0, false
	}
	return series[i], true
}
