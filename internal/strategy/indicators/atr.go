package indicators

import (
	"math"

	"tradeEngine/internal/domain"
)

// ATR returns the Average True Range series of bars using Wilder's smoothing.
// The first defined value is at index period.
func ATR(bars []*domain.Kline, period int) ([]float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return nil, err
	}
	out := nanSeries(len(bars))
	if len(bars) < period+1 {
		return out, nil
	}

	trueRanges := make([]float64, len(bars))
	trueRanges[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		trueRanges[i] = math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	p := float64(period)
	for i := period; i < len(bars); i++ {
		atr = (atr*(p-1) + trueRanges[i]) / p
		out[i] = atr
	}
	return out, nil
}
