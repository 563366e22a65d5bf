package observe

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes convergence progress as prometheus metrics. A run that
// takes tens of minutes against a slow control plane is easier to watch
// through a scrape endpoint than through log tailing.
type Metrics struct {
	registry *prometheus.Registry

	Passes       prometheus.Counter
	Attempts     *prometheus.CounterVec
	EntityStates *prometheus.GaugeVec
	RunConverged prometheus.Gauge
}

// NewMetrics creates a metrics set on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabkube_passes_total",
			Help: "Reconciliation passes executed by the convergence supervisor.",
		}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabkube_reconcile_attempts_total",
			Help: "Entity reconciliation attempts by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		EntityStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fabkube_entities",
			Help: "Number of topology entities per convergence state.",
		}, []string{"state"}),
		RunConverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabkube_converged",
			Help: "1 when every entity reported Ready, 0 otherwise.",
		}),
	}

	registry.MustRegister(m.Passes, m.Attempts, m.EntityStates, m.RunConverged)
	return m
}

// Handler returns the scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. Errors other
// than shutdown are reported through the returned channel so a broken
// listener never aborts a deployment.
func (m *Metrics) Serve(ctx context.Context, addr string) <-chan error {
	errc := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	return errc
}
