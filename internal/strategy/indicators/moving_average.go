package indicators

import "math"

// SMA returns the simple moving average series of values.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	total := 0.0
	for i, v := range values {
		total += v
		if i >= period {
			total -= values[i-period]
		}
		if i >= period-1 {
			out[i] = total / float64(period)
		}
	}
	return out, nil
}

// EMA returns the exponential moving average series of values, seeded with
// the SMA of the first period values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	return emaFrom(values, period, 0), nil
}

// emaFrom computes an EMA over values starting at the first defined index
// start, leaving NaN before the seed.
func emaFrom(values []float64, period, start int) []float64 {
	out := nanSeries(len(values))
	if len(values)-start < period {
		return out
	}

	multiplier := 2.0 / float64(period+1)
	seed := 0.0
	for i := start; i < start+period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)
	out[start+period-1] = ema

	for i := start + period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// StdDev returns the rolling population standard deviation of values.
func StdDev(values []float64, period int) ([]float64, error) {
	mean, err := SMA(values, period)
	if err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		var sq float64
		for _, v := range values[i-period+1 : i+1] {
			d := v - mean[i]
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period))
	}
	return out, nil
}
