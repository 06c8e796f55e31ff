package csvfeed

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func sampleKlines(n int) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := range out {
		open := start.Add(time.Duration(i) * time.Hour)
		out[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour - time.Second),
			Symbol:    "ETHUSDT",
			Interval:  "1h",
			Open:      100 + float64(i),
			High:      101.5 + float64(i),
			Low:       99.25 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    10,
		}
	}
	return out
}

func TestKlinesRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ETHUSDT_1h.csv")
	in := sampleKlines(3)
	require.NoError(t, WriteKlines(in, path))

	out, err := ReadKlines(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeKlines_Errors(t *testing.T) {
	header := strings.Join(klineHeader, ",") + "\n"
	tests := []struct {
		name string
		body string
	}{
		{name: "bad time", body: header + "yesterday,2024-01-01T00:59:59Z,X,1h,1,1,1,1,1\n"},
		{name: "bad price", body: header + "2024-01-01T00:00:00Z,2024-01-01T00:59:59Z,X,1h,1,1,1,oops,1\n"},
		{name: "short row", body: header + "2024-01-01T00:00:00Z,2024-01-01T00:59:59Z\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeKlines(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}

	empty, err := DecodeKlines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncodeKlines_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeKlines(&buf, sampleKlines(1)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "open_time,close_time,symbol,interval,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2024-01-01T00:00:00Z,2024-01-01T00:59:59Z,ETHUSDT,1h,100,101.5,99.25,100.5,10", lines[1])
}

func TestTradesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	in := []*domain.Trade{
		{
			Symbol: "BTCUSDT", Strategy: "RSI Mean Reversion", Side: domain.Long,
			EntryPrice: 100, ExitPrice: 104, Size: 5, StopLoss: domain.Float(98), TakeProfit: domain.Float(104),
			PnL: 20, EntryTime: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), Balance: 1020,
		},
		{
			Symbol: "BTCUSDT", Strategy: "MACD Trend Following", Side: domain.Short,
			EntryPrice: 104, ExitPrice: 106.08, Size: 1,
			PnL: -2.08, EntryTime: time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), Balance: 1017.92,
		},
	}
	require.NoError(t, WriteTrades(in, path))

	out, err := ReadTrades(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFeed_GetBars(t *testing.T) {
	dir := t.TempDir()
	feed, err := NewFeed(dir, &mockLogger{})
	require.NoError(t, err)
	require.NoError(t, WriteKlines(sampleKlines(5), feed.Path("ETHUSDT", "1h")))

	bars, err := feed.GetBars(context.Background(), "ETHUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 103.5, bars[0].Close)
	assert.Equal(t, 104.5, bars[1].Close)

	all, err := feed.GetBars(context.Background(), "ETHUSDT", "1h", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = feed.GetBars(context.Background(), "BTCUSDT", "1h", 2)
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}

func TestFeed_RejectsUnorderedSeries(t *testing.T) {
	dir := t.TempDir()
	feed, err := NewFeed(dir, &mockLogger{})
	require.NoError(t, err)
	bars := sampleKlines(3)
	bars[1], bars[2] = bars[2], bars[1]
	require.NoError(t, WriteKlines(bars, feed.Path("ETHUSDT", "1h")))

	_, err = feed.GetBars(context.Background(), "ETHUSDT", "1h", 0)
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}
