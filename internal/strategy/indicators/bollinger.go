package indicators

import "fmt"

// Bands holds Bollinger band series aligned with the input.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns SMA(period) ± k population standard deviations.
func Bollinger(values []float64, period int, k float64) (Bands, error) {
	if k <= 0 {
		return Bands{}, fmt.Errorf("bollinger deviation multiplier must be positive, got %v", k)
	}
	middle, err := SMA(values, period)
	if err != nil {
		return Bands{}, err
	}
	sd, err := StdDev(values, period)
	if err != nil {
		return Bands{}, err
	}

	upper := nanSeries(len(values))
	lower := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		upper[i] = middle[i] + k*sd[i]
		lower[i] = middle[i] - k*sd[i]
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}, nil
}
