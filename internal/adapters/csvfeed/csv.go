// Package csvfeed reads and writes klines and backtest trades as CSV files
// and serves stored klines as a ports.MarketData source.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tradeEngine/internal/domain"
)

var klineHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

var tradeHeader = []string{"symbol", "strategy", "side", "entry_time", "entry_price", "exit_price", "size", "stop_loss", "take_profit", "pnl", "balance"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func createFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return os.Create(filename)
}

// WriteKlines writes klines to filename, replacing any existing file.
func WriteKlines(klines []*domain.Kline, filename string) error {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return EncodeKlines(file, klines)
}

// EncodeKlines writes klines with a header row to w.
func EncodeKlines(w io.Writer, klines []*domain.Kline) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(klineHeader); err != nil {
		return err
	}
	for _, k := range klines {
		err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339),
			k.CloseTime.UTC().Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			formatFloat(k.Open),
			formatFloat(k.High),
			formatFloat(k.Low),
			formatFloat(k.Close),
			formatFloat(k.Volume),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadKlines loads klines written by WriteKlines.
func ReadKlines(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeKlines(file)
}

// DecodeKlines parses kline rows from r. The header row is required.
func DecodeKlines(r io.Reader) ([]*domain.Kline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(klineHeader)

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var klines []*domain.Kline
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		k, err := parseKline(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseKline(rec []string) (*domain.Kline, error) {
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return nil, fmt.Errorf("parse open_time %q: %w", rec[0], err)
	}
	closeTime, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return nil, fmt.Errorf("parse close_time %q: %w", rec[1], err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(rec[4+i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", klineHeader[4+i], rec[4+i], err)
		}
		vals[i] = v
	}
	return &domain.Kline{
		OpenTime:  openTime.UTC(),
		CloseTime: closeTime.UTC(),
		Symbol:    rec[2],
		Interval:  rec[3],
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// WriteTrades writes simulated backtest trades to filename.
func WriteTrades(trades []*domain.Trade, filename string) error {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := writer.Write([]string{
			t.Symbol,
			t.Strategy,
			string(t.Side),
			t.EntryTime.UTC().Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Size),
			formatOptional(t.StopLoss),
			formatOptional(t.TakeProfit),
			formatFloat(t.PnL),
			formatFloat(t.Balance),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTrades loads trades written by WriteTrades.
func ReadTrades(filename string) ([]*domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(tradeHeader)
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var trades []*domain.Trade
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, err := parseTrade(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTrade(rec []string) (*domain.Trade, error) {
	entryTime, err := time.Parse(time.RFC3339, rec[3])
	if err != nil {
		return nil, fmt.Errorf("parse entry_time %q: %w", rec[3], err)
	}
	num := func(i int) (float64, error) {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", tradeHeader[i], rec[i], err)
		}
		return v, nil
	}
	optional := func(i int) (*float64, error) {
		if rec[i] == "" {
			return nil, nil
		}
		v, err := num(i)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	t := &domain.Trade{Symbol: rec[0], Strategy: rec[1], Side: domain.Side(rec[2]), EntryTime: entryTime.UTC()}
	if t.EntryPrice, err = num(4); err != nil {
		return nil, err
	}
	if t.ExitPrice, err = num(5); err != nil {
		return nil, err
	}
	if t.Size, err = num(6); err != nil {
		return nil, err
	}
	if t.StopLoss, err = optional(7); err != nil {
		return nil, err
	}
	if t.TakeProfit, err = optional(8); err != nil {
		return nil, err
	}
	if t.PnL, err = num(9); err != nil {
		return nil, err
	}
	if t.Balance, err = num(10); err != nil {
		return nil, err
	}
	return t, nil
}
