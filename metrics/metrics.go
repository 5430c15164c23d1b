// Package metrics exposes the engine's Prometheus surface: context-assembly
// latency, breaker trips, and callback failures. Structurally grounded on
// AltairaLabs/PromptKit's runtime/metrics/prometheus package — package-level
// metric vectors plus an Exporter that owns its own registry — adapted from
// pipeline-stage/provider metrics to this engine's components.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatmemory"

var (
	contextAssemblyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_assembly_duration_seconds",
			Help:      "Duration of get_context calls in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"pre_check"}, // withinBudget, exceeded
	)

	breakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_trips_total",
			Help:      "Total number of circuit breaker open transitions",
		},
		[]string{"breaker"}, // summarization, semantic_retriever
	)

	callbackFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_failures_total",
			Help:      "Total number of callback invocations that failed",
		},
		[]string{"event"},
	)

	callbackDisabledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_disabled_total",
			Help:      "Total number of callbacks disabled after exceeding their failure threshold",
		},
		[]string{"event"},
	)

	vectorStoreEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_store_entries",
			Help:      "Current number of entries in the vector store",
		},
		[]string{"backend"},
	)

	allMetrics = []prometheus.Collector{
		contextAssemblyDuration,
		breakerTripsTotal,
		callbackFailuresTotal,
		callbackDisabledTotal,
		vectorStoreEntriesTotal,
	}
)

// RecordContextAssembly records one get_context call's duration.
func RecordContextAssembly(preCheck string, duration time.Duration) {
	contextAssemblyDuration.WithLabelValues(preCheck).Observe(duration.Seconds())
}

// RecordBreakerTrip records a breaker's closed->open transition.
func RecordBreakerTrip(breakerName string) {
	breakerTripsTotal.WithLabelValues(breakerName).Inc()
}

// RecordCallbackFailure records one failed callback invocation.
func RecordCallbackFailure(event string) {
	callbackFailuresTotal.WithLabelValues(event).Inc()
}

// RecordCallbackDisabled records a callback's disable transition.
func RecordCallbackDisabled(event string) {
	callbackDisabledTotal.WithLabelValues(event).Inc()
}

// SetVectorStoreEntries reports the current entry count for a backend label
// ("memory", "redis", "qdrant").
func SetVectorStoreEntries(backend string, count int) {
	vectorStoreEntriesTotal.WithLabelValues(backend).Set(float64(count))
}

const defaultReadHeaderTimeout = 10 * time.Second

// Exporter serves the engine's metrics over HTTP on its own registry.
type Exporter struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry
	mu       sync.Mutex
	started  bool
}

// NewExporter builds an Exporter registered with every engine metric plus
// the standard Go runtime/process collectors.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Exporter{addr: addr, registry: reg}
}

// Registry returns the underlying registry, for embedding into a larger
// host HTTP server.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler returns an http.Handler serving the metrics in Prometheus
// exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start begins serving metrics at /metrics; blocks until Shutdown is called
// or the server errors.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{Addr: e.addr, Handler: mux, ReadHeaderTimeout: defaultReadHeaderTimeout}
	e.started = true
	e.mu.Unlock()
	return e.server.ListenAndServe()
}

// Shutdown gracefully stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil && e.started {
		e.started = false
		return e.server.Shutdown(ctx)
	}
	return nil
}
