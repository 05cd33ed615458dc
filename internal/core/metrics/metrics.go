// Package metrics provides the prometheus collectors shared by the query
// service and the property watchers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can build isolated sets.
type Metrics struct {
	registry *prometheus.Registry

	// ActiveWatches counts engaged watchers per property.
	ActiveWatches *prometheus.GaugeVec

	// WatchTransitions counts watcher engage/disengage transitions.
	WatchTransitions *prometheus.CounterVec

	// WatchEvents counts change notifications raised by external watchers.
	WatchEvents *prometheus.CounterVec

	// WatchErrors counts failures inside external watchers.
	WatchErrors prometheus.Counter

	// RPCRequests counts handled RPCs by method and status code.
	RPCRequests *prometheus.CounterVec

	// RPCDuration observes RPC latency by method.
	RPCDuration *prometheus.HistogramVec
}

// New registers a fresh set of collectors, plus the Go and process
// collectors, on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveWatches: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "normprops_active_watches",
			Help: "Property watchers currently engaged",
		}, []string{"property"}),
		WatchTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "normprops_watch_transitions_total",
			Help: "Watcher state transitions by property and target state",
		}, []string{"property", "state"}),
		WatchEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "normprops_watch_events_total",
			Help: "Change notifications raised by external watchers",
		}, []string{"property"}),
		WatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "normprops_watch_errors_total",
			Help: "Errors raised inside external watchers",
		}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "normprops_rpc_requests_total",
			Help: "Query service requests by method and status code",
		}, []string{"method", "code"}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "normprops_rpc_duration_seconds",
			Help:    "Query service request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
