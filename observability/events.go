package observability

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"vaultledger/core/events"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	emitted   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of asset transfers segmented by asset.",
			}, []string{"asset"}),
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultledger",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of emitted ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.emitted)
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

// RecordEvent increments the counter for an event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()
}

// MetricsEmitter counts every event it sees.
type MetricsEmitter struct{}

// Emit implements events.Emitter.
func (MetricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	registry := Events()
	registry.RecordEvent(evt.EventType())
	if transfer, ok := evt.(events.TokenTransfer); ok {
		registry.RecordTransfer(transfer.Asset)
	}
}

// LogEmitter writes every event as a structured log line.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements events.Emitter.
func (l LogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	payload := evt.Event()
	args := make([]any, 0, len(payload.Attributes)+1)
	args = append(args, slog.String("type", payload.Type))
	for key, value := range payload.Attributes {
		args = append(args, slog.String(key, value))
	}
	logger.Info("ledger event", args...)
}
