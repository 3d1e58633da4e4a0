package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"abstraction-billing/internal/jobqueue"
)

const defaultJobTable = "billing_jobs"

// JobStore is a Postgres implementation of the job queue store.
type JobStore struct {
	db    *sql.DB
	table string
}

// NewJobStore constructs a job store.
func NewJobStore(db *sql.DB, opts ...JobOption) *JobStore {
	store := &JobStore{db: db, table: defaultJobTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// JobOption configures the job store.
type JobOption func(*JobStore)

// WithJobTable overrides the table name.
func WithJobTable(table string) JobOption {
	return func(store *JobStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Insert writes a pending job. The partial unique index on
// (queue, singleton_key) turns duplicate live singletons into a no-op.
func (s *JobStore) Insert(ctx context.Context, job jobqueue.Job) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("job store: nil db")
	}
	if job.Name == "" {
		return false, jobqueue.ErrEmptyName
	}
	payload := []byte(job.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	queue,
	singleton_key,
	payload,
	state,
	attempts,
	max_attempts,
	last_error,
	created_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, 'pending', 0, $6, '', $7, $7
)
ON CONFLICT DO NOTHING`, s.table)

	res, err := s.db.ExecContext(ctx, query, job.ID, job.Name, job.Queue, job.SingletonKey, payload, job.MaxAttempts, job.CreatedAt.UTC())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Claim activates pending jobs, skipping rows locked by other workers.
func (s *JobStore) Claim(ctx context.Context, names []string, limit int, now time.Time) ([]jobqueue.Job, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("job store: nil db")
	}
	if len(names) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
WITH next AS (
	SELECT id
	FROM %s
	WHERE state = 'pending' AND name = ANY($1)
	ORDER BY created_at ASC, id ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE %s AS j
SET state = 'active', attempts = j.attempts + 1, updated_at = $3
FROM next
WHERE j.id = next.id
RETURNING j.id, j.name, j.queue, j.singleton_key, j.payload, j.state, j.attempts, j.max_attempts, j.last_error, j.created_at, j.updated_at`, s.table, s.table)

	rows, err := s.db.QueryContext(ctx, query, names, limit, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []jobqueue.Job
	for rows.Next() {
		var job jobqueue.Job
		var state string
		var payload []byte
		if err := rows.Scan(
			&job.ID,
			&job.Name,
			&job.Queue,
			&job.SingletonKey,
			&payload,
			&state,
			&job.Attempts,
			&job.MaxAttempts,
			&job.LastError,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		job.Payload = payload
		job.State = jobqueue.State(state)
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortByCreated(result), nil
}

// Complete marks a job completed.
func (s *JobStore) Complete(ctx context.Context, id string, now time.Time) error {
	return s.setState(ctx, id, jobqueue.StateCompleted, "", now)
}

// Retry returns a job to pending.
func (s *JobStore) Retry(ctx context.Context, id, lastError string, now time.Time) error {
	return s.setState(ctx, id, jobqueue.StatePending, lastError, now)
}

// Fail marks a job failed.
func (s *JobStore) Fail(ctx context.Context, id, lastError string, now time.Time) error {
	return s.setState(ctx, id, jobqueue.StateFailed, lastError, now)
}

// DeleteQueue removes all jobs in queue.
func (s *JobStore) DeleteQueue(ctx context.Context, queue string) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("job store: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE queue = $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, queue)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *JobStore) setState(ctx context.Context, id string, state jobqueue.State, lastError string, now time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("job store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET state = $1,
	last_error = CASE WHEN $2 = '' THEN last_error ELSE $2 END,
	updated_at = $3
WHERE id = $4`, s.table)
	res, err := s.db.ExecContext(ctx, query, string(state), lastError, now.UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// UPDATE ... RETURNING does not preserve the CTE order.
func sortByCreated(jobs []jobqueue.Job) []jobqueue.Job {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}
