package indicators

import "fmt"

// MACDSeries holds the three MACD outputs, each aligned with the input.
type MACDSeries struct {
	Line      []float64 // EMA(fast) - EMA(slow)
	Signal    []float64 // EMA(signal) of Line
	Histogram []float64 // Line - Signal
}

// MACD computes the moving average convergence divergence of values.
// Histogram is first defined at index slow+signal-2.
func MACD(values []float64, fast, slow, signal int) (MACDSeries, error) {
	for name, p := range map[string]int{"MACD fast": fast, "MACD slow": slow, "MACD signal": signal} {
		if err := checkPeriod(name, p); err != nil {
			return MACDSeries{}, err
		}
	}
	if fast >= slow {
		return MACDSeries{}, fmt.Errorf("MACD fast period %d must be below slow period %d", fast, slow)
	}

	fastEMA := emaFrom(values, fast, 0)
	slowEMA := emaFrom(values, slow, 0)
	line := nanSeries(len(values))
	for i := slow - 1; i < len(values); i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	sig := emaFrom(line, signal, slow-1)
	hist := nanSeries(len(values))
	for i := slow + signal - 2; i < len(values); i++ {
		hist[i] = line[i] - sig[i]
	}
	return MACDSeries{Line: line, Signal: sig, Histogram: hist}, nil
}
