package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openPosition(id, symbol string, side domain.Side, offset time.Duration) *domain.Position {
	return &domain.Position{
		ID:           id,
		Symbol:       symbol,
		Side:         side,
		Size:         2,
		EntryPrice:   100,
		CurrentPrice: 100,
		StopLoss:     domain.Float(98),
		Strategy:     "RSI Mean Reversion",
		Status:       domain.StatusOpen,
		OpenedAt:     baseTime.Add(offset),
	}
}

func closePosition(p *domain.Position, exit float64, reason domain.CloseReason) {
	closedAt := p.OpenedAt.Add(time.Hour)
	p.PnL, p.PnLPercent = domain.CalculatePnL(p.Side, p.EntryPrice, exit, p.Size)
	p.ExitPrice = exit
	p.CurrentPrice = exit
	p.Status = domain.StatusClosed
	p.ClosedAt = &closedAt
	p.CloseReason = reason
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition("a1", "BTCUSDT", domain.Long, 0)
	require.NoError(t, repo.Create(ctx, pos))

	found, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, pos.Symbol, found.Symbol)
	assert.Equal(t, domain.Long, found.Side)
	assert.Equal(t, pos.Size, found.Size)
	assert.Equal(t, pos.EntryPrice, found.EntryPrice)
	require.NotNil(t, found.StopLoss)
	assert.Equal(t, 98.0, *found.StopLoss)
	assert.Nil(t, found.TakeProfit)
	assert.Nil(t, found.ClosedAt)
	assert.Equal(t, domain.CloseReason(""), found.CloseReason)
	assert.True(t, pos.OpenedAt.Equal(found.OpenedAt))
	assert.True(t, found.IsOpen())
}

func TestRepository_CreateErrors(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, openPosition("dup", "BTCUSDT", domain.Long, 0)))
	err := repo.Create(ctx, openPosition("dup", "BTCUSDT", domain.Long, 0))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	err = repo.Create(ctx, &domain.Position{Symbol: "BTCUSDT"})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := setupTestDB(t)
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_Update(t *testing.T) {
	tests := []struct {
		name    string
		create  bool
		wantErr error
	}{
		{name: "close position", create: true},
		{name: "update non-existent position", create: false, wantErr: ports.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			ctx := context.Background()

			pos := openPosition("p1", "ETHUSDT", domain.Short, 0)
			if tt.create {
				require.NoError(t, repo.Create(ctx, pos))
			}
			closePosition(pos, 90, domain.CloseReasonTakeProfit)

			err := repo.Update(ctx, pos)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			found, err := repo.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusClosed, found.Status)
			assert.Equal(t, 90.0, found.ExitPrice)
			assert.InDelta(t, 20, found.PnL, 1e-9)
			assert.InDelta(t, 10, found.PnLPercent, 1e-9)
			assert.Equal(t, domain.CloseReasonTakeProfit, found.CloseReason)
			require.NotNil(t, found.ClosedAt)
			assert.True(t, pos.ClosedAt.Equal(*found.ClosedAt))
		})
	}
}

func TestRepository_ListOpen(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, openPosition("b2", "BTCUSDT", domain.Long, 2*time.Minute)))
	require.NoError(t, repo.Create(ctx, openPosition("b1", "BTCUSDT", domain.Short, time.Minute)))
	require.NoError(t, repo.Create(ctx, openPosition("e1", "ETHUSDT", domain.Long, 0)))
	closed := openPosition("b3", "BTCUSDT", domain.Long, 3*time.Minute)
	require.NoError(t, repo.Create(ctx, closed))
	closePosition(closed, 101, domain.CloseReasonManual)
	require.NoError(t, repo.Update(ctx, closed))

	btc, err := repo.ListOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, "b1", btc[0].ID)
	assert.Equal(t, "b2", btc[1].ID)

	all, err := repo.ListOpen(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListOpen(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_ListHistory(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"h1", "h2", "h3"} {
		require.NoError(t, repo.Create(ctx, openPosition(id, "BTCUSDT", domain.Long, time.Duration(i)*time.Minute)))
	}

	history, err := repo.ListHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "h3", history[0].ID)
	assert.Equal(t, "h2", history[1].ID)

	all, err := repo.ListHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_AggregateStats(t *testing.T) {
	tests := []struct {
		name  string
		exits []float64
		open  int
		want  domain.AggregateStats
	}{
		{
			name: "no closed positions",
			open: 1,
			want: domain.AggregateStats{},
		},
		{
			name:  "wins and losses",
			exits: []float64{110, 105, 95},
			open:  1,
			want: domain.AggregateStats{
				Total:    3,
				Winners:  2,
				Losers:   1,
				WinRate:  200.0 / 3.0,
				TotalPnL: 20,
				AvgWin:   15,
				AvgLoss:  -10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			ctx := context.Background()

			for i, exit := range tt.exits {
				p := openPosition(string(rune('a'+i)), "BTCUSDT", domain.Long, time.Duration(i)*time.Minute)
				require.NoError(t, repo.Create(ctx, p))
				closePosition(p, exit, domain.CloseReasonManual)
				require.NoError(t, repo.Update(ctx, p))
			}
			for i := 0; i < tt.open; i++ {
				require.NoError(t, repo.Create(ctx, openPosition(string(rune('x'+i)), "BTCUSDT", domain.Long, time.Hour)))
			}

			got, err := repo.AggregateStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.Winners, got.Winners)
			assert.Equal(t, tt.want.Losers, got.Losers)
			assert.InDelta(t, tt.want.WinRate, got.WinRate, 1e-9)
			assert.InDelta(t, tt.want.TotalPnL, got.TotalPnL, 1e-9)
			assert.InDelta(t, tt.want.AvgWin, got.AvgWin, 1e-9)
			assert.InDelta(t, tt.want.AvgLoss, got.AvgLoss, 1e-9)
		})
	}
}
