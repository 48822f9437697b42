// Package metrics serves Prometheus metrics for the workload on a dedicated
// listener, separate from the API server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes a private registry on /metrics.
type MetricsServer struct {
	namespace string
	registry  *prometheus.Registry
	srv       *http.Server
}

// New creates a metrics server for addr. Dashes in namespace become
// underscores so it is a valid metric prefix.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		namespace: strings.ReplaceAll(namespace, "-", "_"),
		registry:  registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Namespace returns the sanitized metric namespace.
func (m *MetricsServer) Namespace() string {
	return m.namespace
}

// Registry returns the registry served on /metrics.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler of the metrics endpoint.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

// ListenAndServe blocks serving metrics until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	err := m.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
