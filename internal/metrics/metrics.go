package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

var (
	// BulkTargets counts per-target outcomes of bulk operations.
	BulkTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argo_appsets",
		Subsystem: "bulk",
		Name:      "targets_total",
		Help:      "Bulk operation targets by operation and result",
	}, []string{"operation", "result"})

	BulkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "argo_appsets",
		Subsystem: "bulk",
		Name:      "duration_seconds",
		Help:      "Wall time of one bulk operation across all targets",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	// RefreshFailures counts dropped per-item fetches.
	// Labels: mode (silent, visible)
	RefreshFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "argo_appsets",
		Subsystem: "refresh",
		Name:      "failures_total",
		Help:      "Per-item refresh failures by poll mode",
	}, []string{"mode"})
)

func ObserveBulkTarget(operation string, ok bool) {
	result := ResultSuccess
	if !ok {
		result = ResultFailed
	}
	BulkTargets.WithLabelValues(operation, result).Inc()
}

func ObserveBulkDuration(operation string, d time.Duration) {
	BulkDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func ObserveRefreshFailure(mode string) {
	RefreshFailures.WithLabelValues(mode).Inc()
}

// Serve exposes /metrics on addr until ctx is done. Empty addr disables it.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
