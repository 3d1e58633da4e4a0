package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"abstraction-billing/internal/jobqueue"
)

// JobStore is an in-memory job store for demo/testing.
type JobStore struct {
	mu   sync.RWMutex
	seq  int64
	jobs map[string]*storedJob
}

type storedJob struct {
	job jobqueue.Job
	seq int64
}

// NewJobStore constructs a store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*storedJob)}
}

// Insert stores a pending job unless a live singleton holds the key.
func (s *JobStore) Insert(ctx context.Context, job jobqueue.Job) (bool, error) {
	_ = ctx
	if job.Name == "" {
		return false, jobqueue.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.SingletonKey != "" {
		for _, existing := range s.jobs {
			if existing.job.Queue == job.Queue && existing.job.SingletonKey == job.SingletonKey && isLive(existing.job.State) {
				return false, nil
			}
		}
	}
	if _, ok := s.jobs[job.ID]; ok {
		return false, nil
	}
	s.seq++
	if job.State == "" {
		job.State = jobqueue.StatePending
	}
	s.jobs[job.ID] = &storedJob{job: job, seq: s.seq}
	return true, nil
}

// Claim activates pending jobs in insertion order.
func (s *JobStore) Claim(ctx context.Context, names []string, limit int, now time.Time) ([]jobqueue.Job, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := make([]*storedJob, 0)
	for _, stored := range s.jobs {
		if stored.job.State != jobqueue.StatePending {
			continue
		}
		if _, ok := wanted[stored.job.Name]; !ok {
			continue
		}
		candidates = append(candidates, stored)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]jobqueue.Job, 0, len(candidates))
	for _, stored := range candidates {
		stored.job.State = jobqueue.StateActive
		stored.job.Attempts++
		stored.job.UpdatedAt = now.UTC()
		claimed = append(claimed, stored.job)
	}
	return claimed, nil
}

// Complete marks a job completed.
func (s *JobStore) Complete(ctx context.Context, id string, now time.Time) error {
	return s.update(ctx, id, func(job *jobqueue.Job) {
		job.State = jobqueue.StateCompleted
		job.UpdatedAt = now.UTC()
	})
}

// Retry returns a job to pending.
func (s *JobStore) Retry(ctx context.Context, id, lastError string, now time.Time) error {
	return s.update(ctx, id, func(job *jobqueue.Job) {
		job.State = jobqueue.StatePending
		job.LastError = lastError
		job.UpdatedAt = now.UTC()
	})
}

// Fail marks a job failed.
func (s *JobStore) Fail(ctx context.Context, id, lastError string, now time.Time) error {
	return s.update(ctx, id, func(job *jobqueue.Job) {
		job.State = jobqueue.StateFailed
		job.LastError = lastError
		job.UpdatedAt = now.UTC()
	})
}

// DeleteQueue removes all jobs in queue.
func (s *JobStore) DeleteQueue(ctx context.Context, queue string) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, stored := range s.jobs {
		if stored.job.Queue == queue {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Get returns a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (jobqueue.Job, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.jobs[id]
	if !ok {
		return jobqueue.Job{}, jobqueue.ErrJobNotFound
	}
	return stored.job, nil
}

// List returns jobs matching name, or all jobs when name is empty, in insertion order.
func (s *JobStore) List(ctx context.Context, name string) []jobqueue.Job {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := make([]*storedJob, 0, len(s.jobs))
	for _, item := range s.jobs {
		if name != "" && item.job.Name != name {
			continue
		}
		stored = append(stored, item)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })
	result := make([]jobqueue.Job, 0, len(stored))
	for _, item := range stored {
		result = append(result, item.job)
	}
	return result
}

func (s *JobStore) update(ctx context.Context, id string, fn func(*jobqueue.Job)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[id]
	if !ok {
		return jobqueue.ErrJobNotFound
	}
	fn(&stored.job)
	return nil
}

func isLive(state jobqueue.State) bool {
	return state == jobqueue.StatePending || state == jobqueue.StateActive
}

// DLQStore keeps dead letter records in memory.
type DLQStore struct {
	mu      sync.Mutex
	records map[string]DLQRecord
}

// DLQRecord is a failed job.
type DLQRecord struct {
	Job      jobqueue.Job
	Error    string
	Attempts int
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore() *DLQStore {
	return &DLQStore{records: make(map[string]DLQRecord)}
}

// RecordFailure upserts a dead letter record.
func (s *DLQStore) RecordFailure(ctx context.Context, job jobqueue.Job, err error) error {
	_ = ctx
	message := ""
	if err != nil {
		message = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[job.ID]
	record.Job = job
	record.Error = message
	record.Attempts++
	s.records[job.ID] = record
	return nil
}

// Records returns a snapshot of the dead letter records.
func (s *DLQStore) Records() []DLQRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]DLQRecord, 0, len(s.records))
	for _, record := range s.records {
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Job.ID < result[j].Job.ID })
	return result
}
