package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"microlend/core/events"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "microlend",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of wallet transfers segmented by asset.",
			}, []string{"asset"}),
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "microlend",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.published)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied asset ticker.
func (m *eventMetrics) RecordTransfer(asset string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// Emit implements events.Emitter so the registry can sit on the node's
// publish path.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.published.WithLabelValues(labelOrUnknown(evt.EventType())).Inc()
	if transfer, ok := evt.(events.Transfer); ok {
		m.RecordTransfer(transfer.Asset)
	}
}
