// Package metrics exposes the Prometheus counters and histograms this
// service records, grounded on the teacher's src/metrics/prometheus.go
// (promauto-registered vectors), trimmed to the saga/outbox/ledger
// domain instead of the teacher's account/CPU metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

var (
	SagasCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sagas_created_total",
			Help: "Total number of sagas created",
		},
	)

	SagaOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_outcomes_total",
			Help: "Total number of sagas reaching a terminal state",
		},
		[]string{"outcome"}, // completed, compensated, fatal
	)

	StepExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_step_executions_total",
			Help: "Total number of step Execute calls",
		},
		[]string{"step", "result"}, // result: success, retry_later, lost_lease, failed
	)

	OutboxDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_dispatch_duration_seconds",
			Help:    "Duration of one outbox message dispatch attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxMessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_processed_total",
			Help: "Total number of outbox messages finalized or released",
		},
		[]string{"outcome"}, // finalized, retry_later, lost_lease, failed, unknown_type
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of ledger operations by result",
		},
		[]string{"operation", "result"}, // operation: debit, credit, compensate
	)
)

func RecordSagaOutcome(outcome string) {
	SagaOutcomesTotal.WithLabelValues(outcome).Inc()
}

func RecordStepExecution(step, result string) {
	StepExecutionsTotal.WithLabelValues(step, result).Inc()
}

func RecordOutboxOutcome(outcome string) {
	OutboxMessagesProcessedTotal.WithLabelValues(outcome).Inc()
}

func RecordLedgerOperation(operation, result string) {
	LedgerOperationsTotal.WithLabelValues(operation, result).Inc()
}
