package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	actionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nix_installer",
			Name:      "action_attempts_total",
			Help:      "Action execute/revert attempts by kind and outcome.",
		},
		[]string{"kind", "op", "outcome"},
	)

	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nix_installer",
			Name:      "action_duration_seconds",
			Help:      "Duration of action execute/revert attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "op"},
	)

	walkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nix_installer",
			Name:      "walk_duration_seconds",
			Help:      "Duration of full install/uninstall walks.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"op", "outcome"},
	)
)

// ObserveAction records one execute or revert attempt of an action.
func ObserveAction(kind, op string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	actionAttempts.WithLabelValues(kind, op, outcome).Inc()
	actionDuration.WithLabelValues(kind, op).Observe(d.Seconds())
}

// ObserveWalk records one full install or uninstall walk over a plan.
func ObserveWalk(op string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	walkDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// MetricsServer exposes the default registry over HTTP when enabled.
type MetricsServer struct {
	srv *http.Server
}

// NewMetricsServer starts the /metrics endpoint if cfg enables it. The
// returned server may be nil-safe shut down either way.
func NewMetricsServer(cfg MetricsConfig) *MetricsServer {
	if !cfg.Enabled {
		return &MetricsServer{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return &MetricsServer{srv: srv}
}

// Shutdown stops the exposition endpoint.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
