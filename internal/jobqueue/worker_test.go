package jobqueue_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"abstraction-billing/internal/jobqueue"
	"abstraction-billing/internal/jobqueue/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type payload struct {
	BatchID string `json:"batch_id"`
}

func newQueueAndWorker(t *testing.T) (*jobqueue.Queue, *jobqueue.Worker, *memory.JobStore, *memory.DLQStore) {
	t.Helper()
	store := memory.NewJobStore()
	dlq := memory.NewDLQStore()
	clock := fixedClock{now: time.Date(2020, time.April, 1, 9, 0, 0, 0, time.UTC)}
	logger := log.New(io.Discard, "", 0)
	queue, err := jobqueue.NewQueue(store, clock, logger)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	worker, err := jobqueue.NewWorker(store, dlq, clock, logger, jobqueue.WorkerConfig{Concurrency: 2, BatchSize: 10})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return queue, worker, store, dlq
}

func TestQueue_SingletonPublishIsDeduplicated(t *testing.T) {
	queue, _, store, _ := newQueueAndWorker(t)
	ctx := context.Background()

	msg := jobqueue.Message{
		Name:         "billing.prepare-transactions",
		Queue:        jobqueue.QueueName("billing.prepare-transactions", "batch-1"),
		SingletonKey: "batch-1",
		Payload:      payload{BatchID: "batch-1"},
	}
	first, err := queue.Publish(ctx, msg)
	if err != nil || first == "" {
		t.Fatalf("first publish: id=%q err=%v", first, err)
	}
	second, err := queue.Publish(ctx, msg)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if second != "" {
		t.Fatalf("expected duplicate publish skipped, got id=%s", second)
	}
	if got := len(store.List(ctx, "")); got != 1 {
		t.Fatalf("jobs mismatch: got=%d want=1", got)
	}

	if err := store.Complete(ctx, first, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	third, err := queue.Publish(ctx, msg)
	if err != nil || third == "" {
		t.Fatalf("publish after completion: id=%q err=%v", third, err)
	}
}

func TestQueue_DeleteQueueRemovesOnlyThatQueue(t *testing.T) {
	queue, _, store, _ := newQueueAndWorker(t)
	ctx := context.Background()

	for _, batchID := range []string{"batch-1", "batch-1", "batch-2"} {
		_, err := queue.Publish(ctx, jobqueue.Message{
			Name:    "billing.process-charge-version-year",
			Queue:   jobqueue.QueueName("billing.process-charge-version-year", batchID),
			Payload: payload{BatchID: batchID},
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := queue.DeleteQueue(ctx, jobqueue.QueueName("billing.process-charge-version-year", "batch-1")); err != nil {
		t.Fatalf("delete queue: %v", err)
	}
	jobs := store.List(ctx, "")
	if len(jobs) != 1 || jobs[0].Queue != "billing.process-charge-version-year.batch-2" {
		t.Fatalf("remaining jobs mismatch: %+v", jobs)
	}
}

func TestWorker_CompletesAndDecodesPayload(t *testing.T) {
	queue, worker, store, _ := newQueueAndWorker(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	worker.Subscribe("job.a", jobqueue.Handler{
		Handle: func(ctx context.Context, job jobqueue.Job) error {
			var p payload
			if err := job.Decode(&p); err != nil {
				return err
			}
			mu.Lock()
			seen = append(seen, p.BatchID)
			mu.Unlock()
			return nil
		},
	})

	for _, id := range []string{"b1", "b2", "b3"} {
		if _, err := queue.Publish(ctx, jobqueue.Message{Name: "job.a", Payload: payload{BatchID: id}}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	results, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results mismatch: got=%d want=3", len(results))
	}
	if len(seen) != 3 || seen[0] != "b1" || seen[2] != "b3" {
		t.Fatalf("same-queue jobs should run in order, got %v", seen)
	}
	for _, job := range store.List(ctx, "job.a") {
		if job.State != jobqueue.StateCompleted {
			t.Fatalf("state mismatch: got=%s want=%s", job.State, jobqueue.StateCompleted)
		}
	}
}

func TestWorker_RetriesThenFails(t *testing.T) {
	queue, worker, store, dlq := newQueueAndWorker(t)
	ctx := context.Background()

	attempts := 0
	failedCalls := 0
	var failedErr error
	worker.Subscribe("job.flaky", jobqueue.Handler{
		Handle: func(ctx context.Context, job jobqueue.Job) error {
			attempts++
			return errors.New("boom")
		},
		Failed: func(ctx context.Context, job jobqueue.Job, err error) error {
			failedCalls++
			failedErr = err
			return nil
		},
	})

	id, err := queue.Publish(ctx, jobqueue.Message{Name: "job.flaky", MaxAttempts: 2})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	results, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != jobqueue.OutcomeRetry {
		t.Fatalf("expected retry outcome, got %+v", results)
	}
	if failedCalls != 0 {
		t.Fatalf("failed arm should not run before attempts are exhausted")
	}

	results, err = worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != jobqueue.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", results)
	}
	if attempts != 2 || failedCalls != 1 || failedErr == nil {
		t.Fatalf("attempts=%d failedCalls=%d failedErr=%v", attempts, failedCalls, failedErr)
	}

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.State != jobqueue.StateFailed || job.LastError != "boom" {
		t.Fatalf("job mismatch: state=%s lastError=%q", job.State, job.LastError)
	}
	if records := dlq.Records(); len(records) != 1 || records[0].Job.ID != id {
		t.Fatalf("dlq mismatch: %+v", records)
	}

	results, _ = worker.RunOnce(ctx)
	if len(results) != 0 {
		t.Fatalf("failed job should not be claimed again")
	}
}

func TestWorker_RecoversHandlerPanic(t *testing.T) {
	queue, worker, _, dlq := newQueueAndWorker(t)
	ctx := context.Background()

	worker.Subscribe("job.panic", jobqueue.Handler{
		Handle: func(ctx context.Context, job jobqueue.Job) error {
			panic("bad state")
		},
	})
	if _, err := queue.Publish(ctx, jobqueue.Message{Name: "job.panic"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	results, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != jobqueue.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", results)
	}
	if len(dlq.Records()) != 1 {
		t.Fatalf("expected dlq record")
	}
}

func TestWorker_DrainFollowsChainedJobs(t *testing.T) {
	queue, worker, _, _ := newQueueAndWorker(t)
	ctx := context.Background()

	ran := 0
	worker.Subscribe("job.first", jobqueue.Handler{
		Handle: func(ctx context.Context, job jobqueue.Job) error {
			ran++
			_, err := queue.Publish(ctx, jobqueue.Message{Name: "job.second"})
			return err
		},
	})
	worker.Subscribe("job.second", jobqueue.Handler{
		Handle: func(ctx context.Context, job jobqueue.Job) error {
			ran++
			return nil
		},
	})
	if _, err := queue.Publish(ctx, jobqueue.Message{Name: "job.first"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	total, err := worker.Drain(ctx, 5)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if total != 2 || ran != 2 {
		t.Fatalf("drain mismatch: total=%d ran=%d", total, ran)
	}
}

func TestJob_Defaults(t *testing.T) {
	job, err := jobqueue.NewJob(jobqueue.Message{Name: "job.a"}, time.Now())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Queue != "job.a" || job.MaxAttempts != 1 || job.State != jobqueue.StatePending || job.ID == "" {
		t.Fatalf("defaults mismatch: %+v", job)
	}
	if _, err := jobqueue.NewJob(jobqueue.Message{}, time.Now()); !errors.Is(err, jobqueue.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}
