// Package metrics provides the Prometheus registry used by the session
// engine. The package is split the way the rest
// of the tree splits protocol-agnostic interfaces from their
// Prometheus-backed implementations: this file owns the registry and the
// enabled/disabled switch, pkg/metrics/session.go owns the session-level
// interface, and pkg/metrics/prometheus owns the concrete collectors.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry if metrics are
// enabled. It must be called before any NewXMetrics constructor. Once a
// registry exists, later calls are no-ops; a call with on=false creates no
// registry, so a later InitRegistry(true) still creates one.
func InitRegistry(on bool) {
	if registry != nil {
		return
	}
	enabled = on
	if !on {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process-wide registry. It is nil until
// InitRegistry(true) has been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// NewServer returns an HTTP server exposing the registry at /metrics on
// the given port. The caller is responsible for running it (e.g. in a
// goroutine) and shutting it down.
func NewServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}

// Shutdown gracefully stops srv, waiting up to timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
