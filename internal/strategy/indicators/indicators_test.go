package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/domain"
)

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-4, "index %d", i)
	}
}

var nan = math.NaN()

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{2, 4, 6, 8, 12}, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 4, 6, 8.6667}, got)

	short, err := SMA([]float64{1, 2}, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan}, short)

	_, err = SMA([]float64{1}, 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	got, err := EMA([]float64{2, 4, 6, 8, 12}, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 4, 6, 9}, got)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   []float64
	}{
		{
			name:   "wilder smoothing",
			values: []float64{100, 102, 101, 103, 102, 104},
			period: 3,
			want:   []float64{nan, nan, nan, 80, 61.5385, 77.2727},
		},
		{
			name:   "all gains",
			values: []float64{100, 102, 104, 106},
			period: 3,
			want:   []float64{nan, nan, nan, 100},
		},
		{
			name:   "all losses",
			values: []float64{106, 104, 102, 100},
			period: 3,
			want:   []float64{nan, nan, nan, 0},
		},
		{
			name:   "flat",
			values: []float64{100, 100, 100, 100},
			period: 3,
			want:   []float64{nan, nan, nan, 50},
		},
		{
			name:   "insufficient data",
			values: []float64{100, 101, 102},
			period: 3,
			want:   []float64{nan, nan, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.values, tt.period)
			require.NoError(t, err)
			assertSeries(t, tt.want, got)
		})
	}
}

func TestRSI_Bounds(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	got, err := RSI(values, 14)
	require.NoError(t, err)
	for _, v := range got[14:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestMACD(t *testing.T) {
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	m, err := MACD(rising, 12, 26, 9)
	require.NoError(t, err)

	_, ok := At(m.Histogram, 26+9-2)
	assert.True(t, ok)
	_, ok = At(m.Histogram, 32)
	assert.False(t, ok)

	line, ok := Last(m.Line)
	require.True(t, ok)
	assert.Greater(t, line, 0.0)

	fast, _ := EMA(rising, 12)
	slow, _ := EMA(rising, 26)
	assert.InDelta(t, fast[59]-slow[59], line, 1e-9)

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 50
	}
	m, err = MACD(flat, 12, 26, 9)
	require.NoError(t, err)
	hist, ok := Last(m.Histogram)
	require.True(t, ok)
	assert.InDelta(t, 0, hist, 1e-12)

	_, err = MACD(flat, 26, 12, 9)
	assert.Error(t, err)
}

func TestBollinger(t *testing.T) {
	b, err := Bollinger([]float64{1, 2, 3, 4, 5}, 5, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, nan, 5.828427}, b.Upper)
	assertSeries(t, []float64{nan, nan, nan, nan, 3}, b.Middle)
	assertSeries(t, []float64{nan, nan, nan, nan, 0.171573}, b.Lower)

	_, err = Bollinger([]float64{1, 2}, 2, 0)
	assert.Error(t, err)
}

func TestATR(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Kline, 6)
	for i := range bars {
		bars[i] = &domain.Kline{OpenTime: start.Add(time.Duration(i) * time.Hour), High: 101, Low: 99, Close: 100}
	}
	got, err := ATR(bars, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, 2, 2, 2}, got)

	// A gap up widens the true range to the previous close.
	bars[5].High, bars[5].Low, bars[5].Close = 111, 109, 110
	got, err = ATR(bars, 3)
	require.NoError(t, err)
	assert.InDelta(t, (2*2+11)/3.0, got[5], 1e-9)
}

func TestLastAndPrev(t *testing.T) {
	s := []float64{nan, 1, 2}
	v, ok := Last(s)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = Prev(s)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = At(s, 0)
	assert.False(t, ok)
	_, ok = Last(nil)
	assert.False(t, ok)
	_, ok = Prev([]float64{1})
	assert.False(t, ok)
}
