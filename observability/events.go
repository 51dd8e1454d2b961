package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"firechain/core/events"
)

// EventMetrics counts structured events by type.
type EventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the process wide event counter. It satisfies events.Emitter
// so it can sit in an events.Fanout next to the other sinks.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fire",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of structured events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.Record(evt.EventType())
}

// Record increments the counter for the supplied event type.
func (m *EventMetrics) Record(kind string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(kind)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}
