package ports

import (
	"context"

	"tradeEngine/internal/domain"
)

// PositionStore persists positions for the ledger.
type PositionStore interface {
	// Create saves a new position. The position must already carry its ID.
	Create(ctx context.Context, pos *domain.Position) error
	// Update overwrites the mutable fields of an existing position.
	// Returns ErrNotFound (wrapped) if the ID is unknown.
	Update(ctx context.Context, pos *domain.Position) error
	// Get retrieves a position by ID. Returns ErrNotFound (wrapped) if missing.
	Get(ctx context.Context, id string) (*domain.Position, error)
	// ListOpen returns open positions for symbol, or all open positions if symbol is empty.
	ListOpen(ctx context.Context, symbol string) ([]*domain.Position, error)
	// ListHistory returns the most recent positions, newest first.
	ListHistory(ctx context.Context, limit int) ([]*domain.Position, error)
	// AggregateStats summarizes closed positions.
	AggregateStats(ctx context.Context) (domain.AggregateStats, error)
}
