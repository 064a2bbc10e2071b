package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation exposed while a `cdist
// config` run is in flight. Created with its own registry so a caller that
// never asks for metrics never touches the default global registerer.
type Metrics struct {
	registry *prometheus.Registry

	HostRuns          *prometheus.CounterVec
	ObjectsPerRun     prometheus.Histogram
	ConvergencePasses prometheus.Histogram
	ScriptFailures    *prometheus.CounterVec
	HostDuration      prometheus.Histogram
}

// NewMetrics builds a fresh Metrics with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HostRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdist_host_runs_total",
			Help: "Number of per-host configuration runs, by outcome.",
		}, []string{"status"}),
		ObjectsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdist_objects_per_run",
			Help:    "Number of configuration objects prepared per host run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ConvergencePasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdist_convergence_passes",
			Help:    "Number of convergence loop passes needed to stabilize a host run.",
			Buckets: prometheus.LinearBuckets(1, 1, 16),
		}),
		ScriptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdist_script_failures_total",
			Help: "Number of failed host runs, by stage.",
		}, []string{"stage"}),
		HostDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdist_host_duration_seconds",
			Help:    "Wall-clock duration of a per-host configuration run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.HostRuns, m.ObjectsPerRun, m.ConvergencePasses, m.ScriptFailures, m.HostDuration)
	return m
}

// Serve starts an HTTP server exposing m's registry at /metrics on addr. It
// runs until ctx is cancelled, at which point it shuts down and returns.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("orchestrator: metrics server: %w", err)
		}
		return nil
	}
}
