package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const gaugeQueryTimeout = 2 * time.Second

// dbGauges are sampled on every scrape.
var dbGauges = []struct {
	name  string
	help  string
	query string
}{
	{
		name:  "jobs_pending",
		help:  "Pending queue jobs",
		query: `SELECT COUNT(*) FROM billing_jobs WHERE state = 'pending'`,
	},
	{
		name:  "jobs_active",
		help:  "Claimed queue jobs still running",
		query: `SELECT COUNT(*) FROM billing_jobs WHERE state = 'active'`,
	},
	{
		name:  "job_dead_letters",
		help:  "Jobs that exhausted their attempts",
		query: `SELECT COUNT(*) FROM billing_dead_letter_jobs`,
	},
	{
		name:  "charge_version_years_processing",
		help:  "Charge version years still processing",
		query: `SELECT COUNT(*) FROM billing_batch_charge_version_years WHERE status = 'processing'`,
	},
	{
		name:  "batches_live",
		help:  "Batches in processing, review or ready",
		query: `SELECT COUNT(*) FROM billing_batches WHERE status IN ('processing', 'review', 'ready')`,
	},
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	for _, g := range dbGauges {
		query := g.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: metricPrefix + g.name, Help: g.help},
			func() float64 { return sampleCount(db, logger, query) },
		))
	}
}

func sampleCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), gaugeQueryTimeout)
	defer cancel()
	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics: gauge query err=%v", err)
		}
		return 0
	}
	return float64(count)
}
