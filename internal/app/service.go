package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/execution"
	"tradeEngine/internal/ports"
	"tradeEngine/internal/risk"
	"tradeEngine/internal/strategy/backtesting"
)

const (
	defaultStopLong  = 0.98 // Sizing stop for buy signals without one
	defaultStopShort = 1.02 // Sizing stop for sell signals without one
)

// Config holds the engine settings.
type Config struct {
	Mode           domain.TradingMode
	Symbols        []string
	Timeframe      string
	BarLimit       int
	TickInterval   time.Duration
	CallTimeout    time.Duration
	AccountBalance float64
	Backtest       backtesting.Config
	HandleSignals  bool // Stop on SIGINT/SIGTERM while Start runs
}

func (c Config) validate() error {
	var errs []string
	if c.Mode != domain.ModePaper && c.Mode != domain.ModeLive {
		errs = append(errs, fmt.Sprintf("unknown trading mode %q", c.Mode))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, "at least one symbol is required")
	}
	if c.Timeframe == "" {
		errs = append(errs, "timeframe is required")
	}
	if c.BarLimit <= 0 {
		errs = append(errs, "bar limit must be positive")
	}
	if c.TickInterval <= 0 || c.CallTimeout <= 0 {
		errs = append(errs, "tick interval and call timeout must be positive")
	}
	if c.AccountBalance <= 0 {
		errs = append(errs, "account balance must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// Dependencies are the collaborators of the engine. Notifier and Metrics are optional.
type Dependencies struct {
	Logger     ports.Logger
	MarketData ports.MarketData
	Store      ports.PositionStore
	Notifier   ports.Notifier
	Metrics    ports.Metrics
	Risk       *risk.RiskManager
	Strategies []ports.Strategy
}

// BacktestConfig selects the data replayed by RunBacktest. Zero values fall
// back to the engine configuration.
type BacktestConfig struct {
	Symbols   []string
	Timeframe string
	Limit     int
	Settings  *backtesting.Config
}

// Engine runs the trading loop: it pulls bars, evaluates strategies, opens
// positions under the risk limits and manages stops and targets.
type Engine struct {
	cfg        Config
	logger     ports.Logger
	market     ports.MarketData
	notifier   ports.Notifier
	metrics    ports.Metrics
	risk       *risk.RiskManager
	executor   *execution.Executor
	strategies []ports.Strategy
	now        func() time.Time

	mu      sync.Mutex // Protects the run state below
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a new engine instance.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Logger == nil || deps.MarketData == nil || deps.Store == nil || deps.Risk == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Engine", ports.ErrConfigurationError)
	}
	if len(deps.Strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", ports.ErrConfigurationError)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     deps.Logger,
		market:     deps.MarketData,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		risk:       deps.Risk,
		strategies: deps.Strategies,
		now:        time.Now,
	}
	if e.metrics == nil {
		e.metrics = ports.NopMetrics{}
	}

	executor, err := execution.NewExecutor(execution.Config{
		Store:   deps.Store,
		Logger:  deps.Logger,
		OnClose: e.onPositionClosed,
	})
	if err != nil {
		return nil, err
	}
	e.executor = executor

	e.risk.SetAlertFunc(func(ctx context.Context, title, message string) {
		e.notify(ctx, "🚨 "+title, message)
	})
	return e, nil
}

// Start runs the trading loop until ctx is canceled or Stop is called, then
// performs the shutdown for the configured mode.
func (e *Engine) Start(ctx context.Context) error {
	op := "Engine.Start"

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("%s: engine already running", op)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.running, e.cancel, e.done = true, cancel, done
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running, e.cancel = false, nil
		e.mu.Unlock()
		close(done)
	}()

	if e.cfg.HandleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				e.logger.Info(runCtx, op+": Received shutdown signal", map[string]interface{}{"signal": sig.String()})
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	e.logger.Info(runCtx, op+": Starting trading engine", map[string]interface{}{
		"mode":       e.cfg.Mode,
		"symbols":    e.cfg.Symbols,
		"timeframe":  e.cfg.Timeframe,
		"strategies": len(e.strategies),
	})

	if err := e.syncOpenPositions(runCtx); err != nil {
		e.logger.Error(runCtx, err, op+": Failed to synchronize open positions")
		return fmt.Errorf("%s: %w", op, err)
	}

	e.notify(runCtx, "🚀 Trading Engine Started", fmt.Sprintf("Mode: %s\nSymbols: %s\nStrategies: %d",
		e.cfg.Mode, strings.Join(e.cfg.Symbols, ", "), len(e.strategies)))

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.tick(runCtx)
	for {
		select {
		case <-runCtx.Done():
			e.logger.Info(runCtx, op+": Run context cancelled, initiating shutdown")
			e.shutdown(context.WithoutCancel(runCtx))
			return nil
		case <-ticker.C:
			e.tick(runCtx)
		}
	}
}

// Stop cancels the run context and waits for the shutdown to finish.
// It is a no-op when the engine is not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// syncOpenPositions restores the risk manager's open count from the store.
func (e *Engine) syncOpenPositions(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	open, err := e.executor.OpenPositions(callCtx, "")
	if err != nil {
		return fmt.Errorf("list open positions: %w: %w", ports.ErrPersistence, err)
	}
	e.risk.SetOpenPositions(len(open))
	e.metrics.SetOpenPositions(len(open))
	e.logger.Info(ctx, "Engine.syncOpenPositions: Initial state synchronized", map[string]interface{}{"openPositions": len(open)})
	return nil
}

func (e *Engine) shutdown(ctx context.Context) {
	op := "Engine.shutdown"
	ctx, cancel := context.WithTimeout(ctx, 3*e.cfg.CallTimeout)
	defer cancel()

	if e.cfg.Mode == domain.ModePaper {
		e.logger.Info(ctx, op+": Closing all open positions")
		closed, err := e.executor.CloseAllPositions(ctx)
		if err != nil {
			e.logger.Error(ctx, err, op+": Failed to close some positions", map[string]interface{}{"closed": closed})
		}
	} else {
		open, err := e.executor.OpenPositions(ctx, "")
		if err != nil {
			e.logger.Error(ctx, err, op+": Failed to list open positions")
		} else {
			e.logger.Info(ctx, op+": Live mode, leaving positions open", map[string]interface{}{"openPositions": len(open)})
		}
	}

	e.notify(ctx, "⏹️ Trading Engine Stopped", "Engine has been shut down gracefully.")
	e.logger.Info(ctx, op+": Trading engine stopped")
}

// tick runs one pass over every configured symbol.
func (e *Engine) tick(ctx context.Context) {
	start := e.now()
	e.checkDailyReset(ctx)

	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := e.processSymbol(ctx, symbol); err != nil {
			e.metrics.TickError(symbol)
			if errors.Is(err, ports.ErrDataUnavailable) {
				e.logger.Warn(ctx, "Engine.tick: Skipping symbol", map[string]interface{}{"symbol": symbol, "error": err.Error()})
				continue
			}
			e.logger.Error(ctx, err, "Engine.tick: Symbol evaluation failed", map[string]interface{}{"symbol": symbol})
		}
	}

	summary := e.risk.Summary()
	e.metrics.SetOpenPositions(summary.OpenPositions)
	e.metrics.SetDailyPnL(summary.DailyPnL)
	e.metrics.TickCompleted(e.now().Sub(start))
}

// checkDailyReset rolls the daily risk statistics over at the UTC day change.
func (e *Engine) checkDailyReset(ctx context.Context) {
	today := e.now().UTC().Truncate(24 * time.Hour)
	if e.risk.LastReset().UTC().Truncate(24 * time.Hour).Before(today) {
		e.logger.Info(ctx, "Engine.checkDailyReset: New trading day", map[string]interface{}{"day": today.Format("2006-01-02")})
		e.risk.ResetDaily()
	}
}

// processSymbol evaluates one symbol. Panics are converted to errors so one
// symbol cannot abort the tick.
func (e *Engine) processSymbol(ctx context.Context, symbol string) (err error) {
	op := "Engine.processSymbol"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic while evaluating %s: %v", op, symbol, r)
		}
	}()

	canOpen := e.risk.CanOpenPosition()
	if !canOpen {
		e.logger.Debug(ctx, op+": Risk limits reached, skipping new signals", map[string]interface{}{"symbol": symbol})
	}

	bars, err := e.fetchBars(ctx, symbol, e.cfg.Timeframe, e.cfg.BarLimit)
	if err != nil {
		return err
	}
	price := bars[len(bars)-1].Close

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	_, err = e.executor.UpdatePositionPrices(callCtx, symbol, price)
	cancel()
	if err != nil {
		e.logger.Warn(ctx, op+": Failed to update position prices", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}

	// Positions opened on this bar are first managed on the next one.
	opened := make(map[string]struct{})
	if canOpen {
		for _, strat := range e.strategies {
			if pos := e.evaluateStrategy(ctx, strat, symbol, bars, price); pos != nil {
				opened[pos.ID] = struct{}{}
			}
		}
	}

	e.managePositions(ctx, symbol, price, opened)
	return nil
}

func (e *Engine) fetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Kline, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	bars, err := e.market.GetBars(callCtx, symbol, timeframe, limit)
	if err != nil {
		if errors.Is(err, ports.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrDataUnavailable, symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", ports.ErrDataUnavailable, symbol)
	}
	return bars, nil
}

func (e *Engine) evaluateStrategy(ctx context.Context, strat ports.Strategy, symbol string, bars []*domain.Kline, price float64) *domain.Position {
	op := "Engine.evaluateStrategy"
	signal := strat.GenerateSignal(bars)
	if signal.Strategy == "" {
		signal.Strategy = strat.Name()
	}
	if err := signal.Validate(price); err != nil {
		e.logger.Warn(ctx, op+": Invalid signal treated as hold", map[string]interface{}{
			"symbol":   symbol,
			"strategy": signal.Strategy,
			"error":    fmt.Errorf("%w: %w", ports.ErrInvalidSignal, err).Error(),
		})
		return nil
	}
	if signal.Action == domain.ActionHold {
		return nil
	}
	e.metrics.SignalGenerated(signal.Strategy, signal.Action)
	return e.processSignal(ctx, symbol, signal, price)
}

// processSignal sizes and opens a position for signal. It returns nil when
// nothing was opened.
func (e *Engine) processSignal(ctx context.Context, symbol string, signal domain.Signal, price float64) *domain.Position {
	op := "Engine.processSignal"

	stop := price * defaultStopLong
	if signal.Action == domain.ActionSell {
		stop = price * defaultStopShort
	}
	if signal.StopLoss != nil {
		stop = *signal.StopLoss
	}

	size := e.risk.CalculatePositionSize(price, stop, e.cfg.AccountBalance)
	if size <= 0 {
		return nil
	}
	if !e.risk.CheckRiskLimits(symbol, signal.Action, size) {
		e.logger.Info(ctx, op+": Risk limits exceeded", map[string]interface{}{"symbol": symbol, "strategy": signal.Strategy})
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	pos, err := e.executor.OpenWithRisk(callCtx, execution.OrderRequest{
		Symbol:     symbol,
		Side:       signal.Action.Side(),
		Size:       size,
		Price:      price,
		Strategy:   signal.Strategy,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
	}, e.risk)
	if err != nil {
		if errors.Is(err, execution.ErrRiskRejected) {
			e.logger.Info(ctx, op+": Risk reservation refused", map[string]interface{}{"symbol": symbol, "strategy": signal.Strategy})
			return nil
		}
		e.logger.Error(ctx, err, op+": Failed to open position", map[string]interface{}{"symbol": symbol, "strategy": signal.Strategy})
		return nil
	}

	e.metrics.OrderExecuted(symbol, pos.Side)
	action := strings.ToUpper(string(signal.Action))
	e.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     symbol,
		"action":     action,
		"price":      price,
		"size":       pos.Size,
		"strategy":   signal.Strategy,
	})
	e.notify(ctx, fmt.Sprintf("🎯 New %s Signal", action), fmt.Sprintf("Pair: %s\nPrice: $%.2f\nSize: %.4f\nStrategy: %s",
		symbol, price, pos.Size, signal.Strategy))
	return pos
}

// managePositions closes positions whose stop or target is reached. The stop
// is checked first. Positions in skip are left alone.
func (e *Engine) managePositions(ctx context.Context, symbol string, price float64, skip map[string]struct{}) {
	op := "Engine.managePositions"
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	open, err := e.executor.OpenPositions(callCtx, symbol)
	if err != nil {
		e.logger.Error(ctx, err, op+": Failed to list open positions", map[string]interface{}{"symbol": symbol})
		return
	}
	for _, pos := range open {
		if _, ok := skip[pos.ID]; ok {
			continue
		}
		var reason domain.CloseReason
		switch {
		case pos.StopLossHit(price):
			reason = domain.CloseReasonStopLoss
		case pos.TakeProfitHit(price):
			reason = domain.CloseReasonTakeProfit
		default:
			continue
		}
		if _, err := e.executor.ClosePosition(callCtx, pos, price, reason); err != nil && !errors.Is(err, ports.ErrPositionClosed) {
			e.logger.Error(ctx, err, op+": Failed to close position", map[string]interface{}{"positionID": pos.ID, "reason": reason})
		}
	}
}

// onPositionClosed runs once per persisted close.
func (e *Engine) onPositionClosed(ctx context.Context, pos *domain.Position) {
	e.risk.DecrementPositions()
	e.risk.UpdateDailyPnL(pos.PnL)
	e.metrics.PositionClosed(pos.Symbol, pos.CloseReason, pos.PnL)

	title := "Position Closed"
	switch pos.CloseReason {
	case domain.CloseReasonStopLoss:
		title = "🛑 Stop-Loss Triggered"
	case domain.CloseReasonTakeProfit:
		title = "💰 Take-Profit Triggered"
	}
	e.notify(ctx, title, fmt.Sprintf("Pair: %s\nSide: %s\nExit: $%.2f\nPnL: $%.2f (%.2f%%)\nReason: %s",
		pos.Symbol, pos.Side, pos.ExitPrice, pos.PnL, pos.PnLPercent, pos.CloseReason))
}

// notify delivers an alert; failures are logged only.
func (e *Engine) notify(ctx context.Context, title, message string) {
	if e.notifier == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()
	if err := e.notifier.Notify(callCtx, title, message); err != nil {
		e.logger.Warn(ctx, "Engine.notify: Failed to send notification", map[string]interface{}{"title": title, "error": err.Error()})
	}
}

// RunBacktest replays the engine's strategies over historical bars.
func (e *Engine) RunBacktest(ctx context.Context, req BacktestConfig) (*domain.BacktestReport, error) {
	op := "Engine.RunBacktest"
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = e.cfg.Symbols
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = e.cfg.Timeframe
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.BarLimit
	}
	settings := e.cfg.Backtest
	if req.Settings != nil {
		settings = *req.Settings
	}

	bars := make(map[string][]*domain.Kline, len(symbols))
	for _, symbol := range symbols {
		series, err := e.fetchBars(ctx, symbol, timeframe, limit)
		if err != nil {
			e.logger.Warn(ctx, op+": No data for symbol", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		bars[symbol] = series
	}

	bt, err := backtesting.NewBacktester(settings, e.strategies, e.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	report, err := bt.Run(ctx, symbols, bars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// GetOpenPositions returns every open position.
func (e *Engine) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	return e.executor.OpenPositions(ctx, "")
}

// GetRiskSummary returns a snapshot of the risk state.
func (e *Engine) GetRiskSummary() domain.RiskSummary {
	return e.risk.Summary()
}

// GetTradeHistory returns the most recent positions, newest first.
func (e *Engine) GetTradeHistory(ctx context.Context, limit int) ([]*domain.Position, error) {
	return e.executor.History(ctx, limit)
}

// GetIndicators returns the current indicator values of every strategy that
// exposes them, keyed by strategy name.
func (e *Engine) GetIndicators(ctx context.Context, symbol string) (map[string]map[string]float64, error) {
	bars, err := e.fetchBars(ctx, symbol, e.cfg.Timeframe, e.cfg.BarLimit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]float64)
	for _, strat := range e.strategies {
		if d, ok := strat.(ports.IndicatorDisplayer); ok {
			out[strat.Name()] = d.Indicators(bars)
		}
	}
	return out, nil
}

// GetPerformanceStats summarizes closed positions.
func (e *Engine) GetPerformanceStats(ctx context.Context) (domain.AggregateStats, error) {
	return e.executor.Stats(ctx)
}
