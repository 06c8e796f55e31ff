package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeEngine/internal/domain"
	"tradeEngine/internal/ports"
)

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	signals       *prometheus.CounterVec
	orders        *prometheus.CounterVec
	closes        *prometheus.CounterVec
	realizedPnL   *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	tickErrors    *prometheus.CounterVec
	openPositions prometheus.Gauge
	dailyPnL      prometheus.Gauge
}

// NewPrometheus creates the engine collectors and registers them together
// with the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Non-hold signals produced by strategies",
		}, []string{"strategy", "action"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_executed_total",
			Help: "Positions opened by the executor",
		}, []string{"symbol", "side"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_positions_closed_total",
			Help: "Positions closed, by reason",
		}, []string{"symbol", "reason"}),
		realizedPnL: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_realized_pnl_abs_total",
			Help: "Absolute realized PnL of closed positions, split by sign",
		}, []string{"symbol", "outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_tick_duration_seconds",
			Help:    "Duration of one trading loop tick",
			Buckets: prometheus.DefBuckets,
		}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_tick_errors_total",
			Help: "Symbol evaluations that failed or panicked",
		}, []string{"symbol"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Positions currently open",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_daily_pnl",
			Help: "Realized PnL since the last daily reset",
		}),
	}
	p.registry.MustRegister(
		p.signals, p.orders, p.closes, p.realizedPnL, p.tickDuration,
		p.tickErrors, p.openPositions, p.dailyPnL,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

var _ ports.Metrics = (*Prometheus)(nil)

func (p *Prometheus) SignalGenerated(strategy string, action domain.Action) {
	p.signals.WithLabelValues(strategy, string(action)).Inc()
}

func (p *Prometheus) OrderExecuted(symbol string, side domain.Side) {
	p.orders.WithLabelValues(symbol, string(side)).Inc()
}

func (p *Prometheus) PositionClosed(symbol string, reason domain.CloseReason, pnl float64) {
	p.closes.WithLabelValues(symbol, string(reason)).Inc()
	switch {
	case pnl > 0:
		p.realizedPnL.WithLabelValues(symbol, "profit").Add(pnl)
	case pnl < 0:
		p.realizedPnL.WithLabelValues(symbol, "loss").Add(-pnl)
	}
}

func (p *Prometheus) TickCompleted(d time.Duration) { p.tickDuration.Observe(d.Seconds()) }
func (p *Prometheus) TickError(symbol string)       { p.tickErrors.WithLabelValues(symbol).Inc() }
func (p *Prometheus) SetOpenPositions(n int)        { p.openPositions.Set(float64(n)) }
func (p *Prometheus) SetDailyPnL(v float64)         { p.dailyPnL.Set(v) }

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger ports.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Metrics endpoint listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
}
