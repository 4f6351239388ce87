// Package metrics defines the prometheus collectors of the service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "sqlsearch"

var (
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "query_duration_seconds",
			Help:      "Time from acquire to projected result, by outcome",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"outcome"},
	)

	AcquireOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_total",
			Help:      "Connection acquisitions by outcome",
		},
		[]string{"outcome"},
	)

	ProjectionDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "degraded_cells_total",
			Help:      "Cells rendered with the unknown-type fallback",
		},
		[]string{"reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result",
		},
		[]string{"result"},
	)
)

// PoolStats reports pool size, checked-out and idle connections.
type PoolStats interface {
	Stats() (maxSize, acquired, idle int)
}

// PoolStatsFunc adapts a function to PoolStats.
type PoolStatsFunc func() (maxSize, acquired, idle int)

func (f PoolStatsFunc) Stats() (int, int, int) { return f() }

// RegisterPool exposes the pool bookkeeping as gauges on reg.
func RegisterPool(reg prometheus.Registerer, src PoolStats) error {
	gauge := func(name, help string, pick func(maxSize, acquired, idle int) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(src.Stats()))
		})
	}

	for _, c := range []prometheus.Collector{
		gauge("max_connections", "Configured pool size", func(m, _, _ int) int { return m }),
		gauge("acquired_connections", "Connections checked out", func(_, a, _ int) int { return a }),
		gauge("idle_connections", "Live connections waiting in the pool", func(_, _, i int) int { return i }),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs a /metrics listener until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
