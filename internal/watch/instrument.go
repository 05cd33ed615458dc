package watch

import (
	"github.com/solatis/normprops/internal/core/metrics"
	"github.com/solatis/normprops/internal/props"
)

// Instrumented wraps a watcher with engagement metrics.
type Instrumented struct {
	inner    props.Watcher
	property string
	m        *metrics.Metrics
}

// Instrument reports w's engagement under the property label name.
func Instrument(w props.Watcher, name string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{inner: w, property: name, m: m}
}

// Watch engages the wrapped watcher.
func (i *Instrumented) Watch() {
	i.m.ActiveWatches.WithLabelValues(i.property).Inc()
	i.m.WatchTransitions.WithLabelValues(i.property, "active").Inc()
	i.inner.Watch()
}

// Cancel disengages the wrapped watcher.
func (i *Instrumented) Cancel() {
	i.inner.Cancel()
	i.m.ActiveWatches.WithLabelValues(i.property).Dec()
	i.m.WatchTransitions.WithLabelValues(i.property, "idle").Inc()
}

// Notified counts an external change notification for the property.
func (i *Instrumented) Notified() {
	i.m.WatchEvents.WithLabelValues(i.property).Inc()
}
