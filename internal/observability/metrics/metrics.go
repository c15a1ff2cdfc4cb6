package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "plaza_"

	resultSuccess = "success"
	resultError   = "error"

	occurrenceCreated = "created"
	occurrenceSkipped = "skipped"
	occurrenceFailed  = "failed"
)

var (
	registerOnce sync.Once

	generateRunsTotal    *prometheus.CounterVec
	generateRunLatency   *prometheus.HistogramVec
	occurrencesTotal     *prometheus.CounterVec
	settlementTotal      *prometheus.CounterVec
	invoiceExportTotal   *prometheus.CounterVec
	invoiceExportLatency *prometheus.HistogramVec
	paymentStatusTotal   *prometheus.CounterVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		generateRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_generate_runs_total",
				Help: "Total due-bill generation runs by result",
			},
			[]string{"result"},
		)
		generateRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_generate_run_latency_seconds",
				Help:    "Due-bill generation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		occurrencesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_occurrences_total",
				Help: "Total obligation occurrences by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)
		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_settlements_total",
				Help: "Total settlement computations by result",
			},
			[]string{"result"},
		)
		invoiceExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_export_total",
				Help: "Total invoice exports by format and result",
			},
			[]string{"format", "result"},
		)
		invoiceExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		paymentStatusTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_payment_status_total",
				Help: "Total payment status changes by new status",
			},
			[]string{"status"},
		)

		prometheus.MustRegister(
			generateRunsTotal,
			generateRunLatency,
			occurrencesTotal,
			settlementTotal,
			invoiceExportTotal,
			invoiceExportLatency,
			paymentStatusTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveGenerateRun records a generation run.
func ObserveGenerateRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if generateRunsTotal != nil {
		generateRunsTotal.WithLabelValues(result).Inc()
	}
	if generateRunLatency != nil {
		generateRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncOccurrence counts one occurrence outcome.
func IncOccurrence(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if occurrencesTotal != nil {
		occurrencesTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// IncSettlement counts one settlement computation.
func IncSettlement(result string) {
	if result == "" {
		result = resultSuccess
	}
	if settlementTotal != nil {
		settlementTotal.WithLabelValues(result).Inc()
	}
}

// ObserveInvoiceExport records export latency and result.
func ObserveInvoiceExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if invoiceExportTotal != nil {
		invoiceExportTotal.WithLabelValues(format, result).Inc()
	}
	if invoiceExportLatency != nil {
		invoiceExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPaymentStatus counts a payment status change.
func IncPaymentStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	if paymentStatusTotal != nil {
		paymentStatusTotal.WithLabelValues(status).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	OccurrenceCreated = occurrenceCreated
	OccurrenceSkipped = occurrenceSkipped
	OccurrenceFailed  = occurrenceFailed
)
