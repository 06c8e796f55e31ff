package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

// OrderRequest describes a position to open.
type OrderRequest struct {
	Symbol     string
	Side       domain.Side
	Size       float64
	Price      float64
	Strategy   string
	StopLoss   *float64
	TakeProfit *float64
}

func (r OrderRequest) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Side != domain.Long && r.Side != domain.Short {
		return fmt.Errorf("invalid side %q", r.Side)
	}
	if r.Size <= 0 || math.IsNaN(r.Size) || math.IsInf(r.Size, 0) {
		return fmt.Errorf("size must be positive, got %v", r.Size)
	}
	if r.Price <= 0 || math.IsNaN(r.Price) || math.IsInf(r.Price, 0) {
		return fmt.Errorf("price must be positive, got %v", r.Price)
	}
	return nil
}

// Reserver is the slice of the risk manager needed to gate an open.
type Reserver interface {
	TryReserve() bool
	Release()
}

// CloseHook is invoked exactly once per position, after its close was persisted.
type CloseHook func(ctx context.Context, pos *domain.Position)

// Executor opens and closes positions and owns their state transitions.
// Mutations of a single position are serialized through a per-position lock.
type Executor struct {
	store   ports.PositionStore
	logger  ports.Logger
	onClose CloseHook
	now     func() time.Time
	newID   func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Config holds the executor dependencies.
type Config struct {
	Store   ports.PositionStore
	Logger  ports.Logger
	OnClose CloseHook // Optional
}

// NewExecutor creates an executor over the given store.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Store == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("store and logger are required for executor")
	}
	return &Executor{
		store:   cfg.Store,
		logger:  cfg.Logger,
		onClose: cfg.OnClose,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (e *Executor) lockFor(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Executor) forget(id string) {
	e.locksMu.Lock()
	delete(e.locks, id)
	e.locksMu.Unlock()
}

// ExecuteOrder creates and persists a new open position.
// On store failure nothing is kept and an ErrPersistence-wrapped error is returned.
func (e *Executor) ExecuteOrder(ctx context.Context, req OrderRequest) (*domain.Position, error) {
	op := "ExecuteOrder"
	if err := req.validate(); err != nil {
		e.logger.Warn(ctx, op+": Rejected order", map[string]interface{}{"symbol": req.Symbol, "reason": err.Error()})
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}

	pos := &domain.Position{
		ID:           e.newID(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Size:         req.Size,
		EntryPrice:   req.Price,
		CurrentPrice: req.Price,
		Strategy:     req.Strategy,
		Status:       domain.StatusOpen,
		OpenedAt:     e.now().UTC(),
	}
	if req.StopLoss != nil {
		pos.StopLoss = domain.Float(*req.StopLoss)
	}
	if req.TakeProfit != nil {
		pos.TakeProfit = domain.Float(*req.TakeProfit)
	}

	if err := e.store.Create(ctx, pos); err != nil {
		e.logger.Error(ctx, err, op+": Failed to persist new position", map[string]interface{}{"symbol": req.Symbol, "strategy": req.Strategy})
		return nil, fmt.Errorf("create position for %s: %w: %w", req.Symbol, ports.ErrPersistence, err)
	}

	e.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"side":       pos.Side,
		"size":       pos.Size,
		"price":      pos.EntryPrice,
		"strategy":   pos.Strategy,
	})
	return pos, nil
}

// ErrRiskRejected is returned by OpenWithRisk when the risk budget is exhausted.
var ErrRiskRejected = errors.New("risk limits do not allow a new position")

// OpenWithRisk reserves a slot in the risk budget, executes the order and
// releases the slot again if execution fails. The reservation and the open
// form one critical section per risk decision.
func (e *Executor) OpenWithRisk(ctx context.Context, req OrderRequest, risk Reserver) (*domain.Position, error) {
	if !risk.TryReserve() {
		return nil, ErrRiskRejected
	}
	pos, err := e.ExecuteOrder(ctx, req)
	if err != nil {
		risk.Release()
		return nil, err
	}
	return pos, nil
}

// ClosePosition closes pos at exitPrice. Closing an already-closed position
// returns the stored copy together with ErrPositionClosed and has no effect.
// On store failure pos is left untouched.
func (e *Executor) ClosePosition(ctx context.Context, pos *domain.Position, exitPrice float64, reason domain.CloseReason) (*domain.Position, error) {
	op := "ClosePosition"
	if pos == nil {
		return nil, fmt.Errorf("%w: nil position", ports.ErrInvalidRequest)
	}
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown close reason %q", ports.ErrInvalidRequest, reason)
	}
	if exitPrice <= 0 || math.IsNaN(exitPrice) || math.IsInf(exitPrice, 0) {
		return nil, fmt.Errorf("%w: invalid exit price %v", ports.ErrInvalidRequest, exitPrice)
	}

	lock := e.lockFor(pos.ID)
	lock.Lock()
	defer lock.Unlock()

	current, err := e.store.Get(ctx, pos.ID)
	if err != nil {
		e.logger.Error(ctx, err, op+": Failed to load position", map[string]interface{}{"positionID": pos.ID})
		return nil, fmt.Errorf("load position %s: %w: %w", pos.ID, ports.ErrPersistence, err)
	}
	if !current.IsOpen() {
		e.logger.Debug(ctx, op+": Position already closed", map[string]interface{}{"positionID": pos.ID})
		return current, ports.ErrPositionClosed
	}

	closed := current.Clone()
	closedAt := e.now().UTC()
	closed.PnL, closed.PnLPercent = domain.CalculatePnL(closed.Side, closed.EntryPrice, exitPrice, closed.Size)
	closed.CurrentPrice = exitPrice
	closed.ExitPrice = exitPrice
	closed.Status = domain.StatusClosed
	closed.ClosedAt = &closedAt
	closed.CloseReason = reason

	if err := e.store.Update(ctx, closed); err != nil {
		e.logger.Error(ctx, err, op+": Failed to persist closed position", map[string]interface{}{"positionID": pos.ID})
		return nil, fmt.Errorf("update position %s: %w: %w", pos.ID, ports.ErrPersistence, err)
	}

	*pos = *closed.Clone()
	e.forget(pos.ID)

	e.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"positionID": closed.ID,
		"symbol":     closed.Symbol,
		"pnl":        closed.PnL,
		"pnlPercent": closed.PnLPercent,
		"reason":     reason,
	})

	if e.onClose != nil {
		e.onClose(ctx, closed.Clone())
	}
	return closed, nil
}

// UpdatePositionPrices marks every open position on symbol to price and persists it.
func (e *Executor) UpdatePositionPrices(ctx context.Context, symbol string, price float64) ([]*domain.Position, error) {
	op := "UpdatePositionPrices"
	open, err := e.store.ListOpen(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list open positions for %s: %w: %w", symbol, ports.ErrPersistence, err)
	}

	updated := make([]*domain.Position, 0, len(open))
	var errs []error
	for _, p := range open {
		up, err := e.markPosition(ctx, p.ID, price)
		if err != nil {
			e.logger.Error(ctx, err, op+": Failed to update position price", map[string]interface{}{"positionID": p.ID})
			errs = append(errs, err)
			continue
		}
		if up != nil {
			updated = append(updated, up)
		}
	}
	return updated, errors.Join(errs...)
}

func (e *Executor) markPosition(ctx context.Context, id string, price float64) (*domain.Position, error) {
	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w: %w", id, ports.ErrPersistence, err)
	}
	if !current.IsOpen() {
		return nil, nil
	}
	current.MarkToMarket(price)
	if err := e.store.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("update position %s: %w: %w", id, ports.ErrPersistence, err)
	}
	return current, nil
}

// CloseAllPositions closes every open position at its last known price with
// reason shutdown. It returns the number of positions closed.
func (e *Executor) CloseAllPositions(ctx context.Context) (int, error) {
	op := "CloseAllPositions"
	open, err := e.store.ListOpen(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list open positions: %w: %w", ports.ErrPersistence, err)
	}

	closed := 0
	var errs []error
	for _, p := range open {
		price := p.CurrentPrice
		if price <= 0 {
			price = p.EntryPrice
		}
		if _, err := e.ClosePosition(ctx, p, price, domain.CloseReasonShutdown); err != nil {
			if errors.Is(err, ports.ErrPositionClosed) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		closed++
	}
	e.logger.Info(ctx, op+": Closed open positions", map[string]interface{}{"closed": closed, "failed": len(errs)})
	return closed, errors.Join(errs...)
}

// OpenPositions returns open positions for symbol, or all of them when symbol is empty.
func (e *Executor) OpenPositions(ctx context.Context, symbol string) ([]*domain.Position, error) {
	return e.store.ListOpen(ctx, symbol)
}

// History returns the most recent positions.
func (e *Executor) History(ctx context.Context, limit int) ([]*domain.Position, error) {
	return e.store.ListHistory(ctx, limit)
}

// Stats summarizes closed positions.
func (e *Executor) Stats(ctx context.Context) (domain.AggregateStats, error) {
	return e.store.AggregateStats(ctx)
}
