package ports

import (
	"context"

	"tradeEngine/internal/domain"
)

// MarketData is the source of historical bars for the engine.
type MarketData interface {
	// GetBars returns up to limit bars for symbol at the given timeframe,
	// oldest first with strictly increasing open times.
	// Returns ErrDataUnavailable (wrapped) when nothing is available.
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error)
}
