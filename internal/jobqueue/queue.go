package jobqueue

import (
	"context"
	"errors"
	"log"
	"time"
)

// Store persists jobs.
type Store interface {
	// Insert stores a pending job. It returns false without storing when a
	// pending or active job with the same queue and non-empty singleton key exists.
	Insert(ctx context.Context, job Job) (bool, error)
	// Claim moves up to limit pending jobs with the given names to active,
	// incrementing their attempts, oldest first.
	Claim(ctx context.Context, names []string, limit int, now time.Time) ([]Job, error)
	Complete(ctx context.Context, id string, now time.Time) error
	// Retry returns an active job to pending with the failure recorded.
	Retry(ctx context.Context, id, lastError string, now time.Time) error
	Fail(ctx context.Context, id, lastError string, now time.Time) error
	// DeleteQueue removes every job of the queue.
	DeleteQueue(ctx context.Context, queue string) (int, error)
}

// DLQStore records jobs that failed for good.
type DLQStore interface {
	RecordFailure(ctx context.Context, job Job, err error) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Queue publishes jobs and tears queues down.
type Queue struct {
	store  Store
	clock  Clock
	logger *log.Logger
}

// NewQueue constructs a queue.
func NewQueue(store Store, clock Clock, logger *log.Logger) (*Queue, error) {
	if store == nil {
		return nil, errors.New("jobqueue: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{store: store, clock: clock, logger: logger}, nil
}

// Publish enqueues a job. A duplicate singleton publish is a no-op that
// returns an empty id.
func (q *Queue) Publish(ctx context.Context, msg Message) (string, error) {
	job, err := NewJob(msg, q.clock.Now())
	if err != nil {
		return "", err
	}
	inserted, err := q.store.Insert(ctx, job)
	if err != nil {
		return "", err
	}
	if !inserted {
		q.logger.Printf("job publish skipped: name=%s queue=%s singleton=%s", job.Name, job.Queue, job.SingletonKey)
		return "", nil
	}
	return job.ID, nil
}

// DeleteQueue removes every job of the named queue.
func (q *Queue) DeleteQueue(ctx context.Context, name string) error {
	n, err := q.store.DeleteQueue(ctx, name)
	if err != nil {
		return err
	}
	if n > 0 {
		q.logger.Printf("job queue deleted: queue=%s jobs=%d", name, n)
	}
	return nil
}
