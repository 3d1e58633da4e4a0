package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "billing_"

	resultSuccess = "success"
	resultError   = "error"
	resultRetry   = "retry"
)

var (
	registerOnce sync.Once

	jobTotal   *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec

	chargeVersionYearTotal   *prometheus.CounterVec
	chargeVersionYearLatency *prometheus.HistogramVec

	batchStatusTransitions *prometheus.CounterVec
	transactionsGenerated  *prometheus.CounterVec
	billingVolumesTotal    *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		jobTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "jobs_total",
				Help: "Total processed jobs by name and result",
			},
			[]string{"job", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_latency_seconds",
				Help:    "Job handler latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job", "result"},
		)

		chargeVersionYearTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "charge_version_year_total",
				Help: "Total charge version year units by result",
			},
			[]string{"result"},
		)
		chargeVersionYearLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "charge_version_year_latency_seconds",
				Help:    "Charge version year processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		batchStatusTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_status_transitions_total",
				Help: "Total batch status transitions by target status",
			},
			[]string{"status"},
		)
		transactionsGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transactions_generated_total",
				Help: "Total generated transactions by kind",
			},
			[]string{"kind"},
		)
		billingVolumesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "volumes_total",
				Help: "Total two-part tariff billing volumes by result",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total batch report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Batch report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			jobTotal,
			jobLatency,
			chargeVersionYearTotal,
			chargeVersionYearLatency,
			batchStatusTransitions,
			transactionsGenerated,
			billingVolumesTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveJob records a job handler outcome.
func ObserveJob(job, result string, duration time.Duration) {
	if job == "" {
		job = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if jobTotal != nil {
		jobTotal.WithLabelValues(job, result).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(job, result).Observe(duration.Seconds())
	}
}

// ObserveChargeVersionYear records a charge version year outcome.
func ObserveChargeVersionYear(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if chargeVersionYearTotal != nil {
		chargeVersionYearTotal.WithLabelValues(result).Inc()
	}
	if chargeVersionYearLatency != nil {
		chargeVersionYearLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBatchStatus counts a batch moving to status.
func IncBatchStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	if batchStatusTransitions != nil {
		batchStatusTransitions.WithLabelValues(status).Inc()
	}
}

// AddTransactions counts generated transactions of a kind.
func AddTransactions(kind string, count int) {
	if count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if transactionsGenerated != nil {
		transactionsGenerated.WithLabelValues(kind).Add(float64(count))
	}
}

// IncBillingVolume counts a billing volume by matching result.
func IncBillingVolume(result string) {
	if result == "" {
		result = resultSuccess
	}
	if billingVolumesTotal != nil {
		billingVolumesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records report export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultRetry   = resultRetry
)
