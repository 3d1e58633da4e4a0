package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"abstraction-billing/internal/jobqueue"
)

// DeadLetter is a job that exhausted its attempts.
type DeadLetter struct {
	JobID         string
	Name          string
	Queue         string
	Payload       []byte
	Error         string
	JobAttempts   int
	Failures      int
	FirstFailedAt time.Time
	LastFailedAt  time.Time
}

// DLQStore records exhausted jobs in billing_dead_letter_jobs. Rows outlive
// the queue deletion that tears a failed batch down.
type DLQStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// RecordFailure upserts the dead letter of job. A repeated failure of the
// same job bumps its failure count.
func (s *DLQStore) RecordFailure(ctx context.Context, job jobqueue.Job, err error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if job.ID == "" {
		return errors.New("dlq store: empty job id")
	}
	message := job.LastError
	if err != nil {
		message = err.Error()
	}
	var payload any
	if len(job.Payload) > 0 {
		payload = []byte(job.Payload)
	}

	_, execErr := s.db.ExecContext(ctx, `
INSERT INTO billing_dead_letter_jobs (
	job_id, name, queue, payload, error, job_attempts, failures, first_failed_at, last_failed_at
) VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
ON CONFLICT (job_id)
DO UPDATE SET
	error = EXCLUDED.error,
	job_attempts = EXCLUDED.job_attempts,
	failures = billing_dead_letter_jobs.failures + 1,
	last_failed_at = EXCLUDED.last_failed_at`,
		job.ID, job.Name, job.Queue, payload, message, job.Attempts, s.now())
	return execErr
}

// ListByQueue returns the dead letters of a queue, oldest failure first.
func (s *DLQStore) ListByQueue(ctx context.Context, queue string) ([]DeadLetter, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("dlq store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, name, queue, COALESCE(payload::text, ''), error, job_attempts, failures, first_failed_at, last_failed_at
FROM billing_dead_letter_jobs
WHERE queue = $1
ORDER BY first_failed_at ASC, job_id ASC`, queue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DeadLetter
	for rows.Next() {
		var (
			item    DeadLetter
			payload string
		)
		if err := rows.Scan(
			&item.JobID,
			&item.Name,
			&item.Queue,
			&payload,
			&item.Error,
			&item.JobAttempts,
			&item.Failures,
			&item.FirstFailedAt,
			&item.LastFailedAt,
		); err != nil {
			return nil, err
		}
		if payload != "" {
			item.Payload = []byte(payload)
		}
		item.FirstFailedAt = item.FirstFailedAt.UTC()
		item.LastFailedAt = item.LastFailedAt.UTC()
		result = append(result, item)
	}
	return result, rows.Err()
}
