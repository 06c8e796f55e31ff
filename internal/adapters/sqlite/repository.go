package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionStore using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_engine.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer; the driver serializes the rest.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite position store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		stop_loss REAL DEFAULT NULL,
		take_profit REAL DEFAULT NULL,
		strategy TEXT NOT NULL,
		status TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		pnl REAL NOT NULL DEFAULT 0,
		pnl_percent REAL NOT NULL DEFAULT 0,
		close_reason TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_status ON trades (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_trades_opened_at ON trades (opened_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

const positionColumns = `id, symbol, side, size, entry_price, current_price, exit_price,
	stop_loss, take_profit, strategy, status, opened_at, closed_at, pnl, pnl_percent, close_reason`

// Create inserts a new position. The position must carry its ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return fmt.Errorf("position with ID is required: %w", ports.ErrInvalidRequest)
	}
	const query = `INSERT INTO trades (` + positionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, string(pos.Side), pos.Size, pos.EntryPrice, pos.CurrentPrice,
		nullExit(pos), nullFloat(pos.StopLoss), nullFloat(pos.TakeProfit), pos.Strategy,
		string(pos.Status), pos.OpenedAt.UTC(), nullTime(pos.ClosedAt), pos.PnL, pos.PnLPercent,
		nullReason(pos.CloseReason))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("position %s already exists: %w: %w", pos.ID, ports.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("failed to insert position for symbol %s: %w: %w", pos.Symbol, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// Update overwrites the mutable fields of an existing position.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return fmt.Errorf("position with ID is required: %w", ports.ErrInvalidRequest)
	}
	const query = `
	UPDATE trades
	SET current_price = ?, exit_price = ?, stop_loss = ?, take_profit = ?, status = ?,
	    closed_at = ?, pnl = ?, pnl_percent = ?, close_reason = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		pos.CurrentPrice, nullExit(pos), nullFloat(pos.StopLoss), nullFloat(pos.TakeProfit),
		string(pos.Status), nullTime(pos.ClosedAt), pos.PnL, pos.PnLPercent, nullReason(pos.CloseReason),
		pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %s: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %s not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

// Get retrieves a position by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Position, error) {
	const query = `SELECT ` + positionColumns + ` FROM trades WHERE id = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query position %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

// ListOpen returns open positions, oldest first. An empty symbol lists every symbol.
func (r *Repository) ListOpen(ctx context.Context, symbol string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM trades WHERE status = ?`
	args := []interface{}{string(domain.StatusOpen)}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY opened_at ASC, id ASC`

	return r.queryPositions(ctx, "ListOpen", query, args...)
}

// ListHistory returns up to limit positions, newest first. A non-positive limit returns all.
func (r *Repository) ListHistory(ctx context.Context, limit int) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM trades ORDER BY opened_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryPositions(ctx, "ListHistory", query, args...)
}

// AggregateStats summarizes closed positions.
func (r *Repository) AggregateStats(ctx context.Context) (domain.AggregateStats, error) {
	const query = `
	SELECT COUNT(*),
	       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(pnl), 0),
	       COALESCE(AVG(CASE WHEN pnl > 0 THEN pnl END), 0),
	       COALESCE(AVG(CASE WHEN pnl < 0 THEN pnl END), 0)
	FROM trades WHERE status = ?`

	var s domain.AggregateStats
	err := r.db.QueryRowContext(ctx, query, string(domain.StatusClosed)).
		Scan(&s.Total, &s.Winners, &s.Losers, &s.TotalPnL, &s.AvgWin, &s.AvgLoss)
	if err != nil {
		return domain.AggregateStats{}, fmt.Errorf("failed to aggregate trade stats: %w: %w", ports.ErrQueryFailed, err)
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Winners) / float64(s.Total) * 100
	}
	return s, nil
}

func (r *Repository) queryPositions(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query positions: %w: %w", op, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan position: %w: %w", op, ports.ErrQueryFailed, err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: error iterating position rows: %w: %w", op, ports.ErrQueryFailed, err)
	}
	return positions, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		side, status      string
		exitPrice, sl, tp sql.NullFloat64
		closedAt          sql.NullTime
		closeReason       sql.NullString
	)
	err := s.Scan(
		&p.ID, &p.Symbol, &side, &p.Size, &p.EntryPrice, &p.CurrentPrice, &exitPrice,
		&sl, &tp, &p.Strategy, &status, &p.OpenedAt, &closedAt, &p.PnL, &p.PnLPercent, &closeReason)
	if err != nil {
		return nil, err
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	p.OpenedAt = p.OpenedAt.UTC()
	if exitPrice.Valid {
		p.ExitPrice = exitPrice.Float64
	}
	if sl.Valid {
		p.StopLoss = domain.Float(sl.Float64)
	}
	if tp.Valid {
		p.TakeProfit = domain.Float(tp.Float64)
	}
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		p.ClosedAt = &t
	}
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	return p, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullExit(p *domain.Position) sql.NullFloat64 {
	if p.IsOpen() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.ExitPrice, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullReason(r domain.CloseReason) sql.NullString {
	if r == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(r), Valid: true}
}
