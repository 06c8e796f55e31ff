package csvfeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

// Feed serves klines stored as <dir>/<SYMBOL>_<timeframe>.csv.
// Files are read once and cached.
type Feed struct {
	dir    string
	logger ports.Logger

	mu    sync.Mutex
	cache map[string][]*domain.Kline
}

// NewFeed creates a CSV-backed market data source rooted at dir.
func NewFeed(dir string, logger ports.Logger) (*Feed, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for csv feed")
	}
	if dir == "" {
		dir = "./data"
	}
	return &Feed{dir: dir, logger: logger, cache: make(map[string][]*domain.Kline)}, nil
}

// Path returns the file that holds symbol at timeframe.
func (f *Feed) Path(symbol, timeframe string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.csv", symbol, timeframe))
}

// Load returns every stored bar for symbol at timeframe.
func (f *Feed) Load(ctx context.Context, symbol, timeframe string) ([]*domain.Kline, error) {
	key := symbol + "|" + timeframe
	f.mu.Lock()
	defer f.mu.Unlock()
	if bars, ok := f.cache[key]; ok {
		return bars, nil
	}

	path := f.Path(symbol, timeframe)
	bars, err := ReadKlines(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no data file %s: %w", path, ports.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("read %s: %w: %w", path, ports.ErrDataUnavailable, err)
	}
	if err := domain.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("invalid series in %s: %w: %w", path, ports.ErrDataUnavailable, err)
	}
	f.logger.Debug(ctx, "Loaded klines from CSV", map[string]interface{}{"path": path, "count": len(bars)})
	f.cache[key] = bars
	return bars, nil
}

// GetBars returns the last limit stored bars. A non-positive limit returns all of them.
func (f *Feed) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error) {
	bars, err := f.Load(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s %s: %w", symbol, timeframe, ports.ErrDataUnavailable)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]*domain.Kline, len(bars))
	copy(out, bars)
	return out, nil
}
