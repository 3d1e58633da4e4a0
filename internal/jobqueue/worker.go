package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"abstraction-billing/internal/observability/metrics"
)

// Outcome is the result arm of a processed job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetry     Outcome = "retry"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome of running one job.
type Result struct {
	Job     Job
	Outcome Outcome
	Err     error
}

// HandleFunc processes one job.
type HandleFunc func(ctx context.Context, job Job) error

// FailFunc runs once a job has failed for good.
type FailFunc func(ctx context.Context, job Job, err error) error

// Handler is the contract for a job name: Handle does the work, Failed
// handles the failed arm after attempts are exhausted.
type Handler struct {
	Handle HandleFunc
	Failed FailFunc
}

// WorkerConfig tunes polling.
type WorkerConfig struct {
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
}

// Worker claims and runs jobs for subscribed names.
type Worker struct {
	store    Store
	dlq      DLQStore
	clock    Clock
	logger   *log.Logger
	cfg      WorkerConfig
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker constructs a worker.
func NewWorker(store Store, dlq DLQStore, clock Clock, logger *log.Logger, cfg WorkerConfig) (*Worker, error) {
	if store == nil {
		return nil, errors.New("jobqueue worker: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		store:    store,
		dlq:      dlq,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}, nil
}

// Subscribe registers the handler for a job name.
func (w *Worker) Subscribe(name string, handler Handler) {
	if handler.Handle == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = handler
}

func (w *Worker) names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.handlers))
	for name := range w.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w *Worker) handler(name string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[name]
	return h, ok
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Printf("job worker poll failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain runs polls until no job is claimed or maxRounds is reached.
func (w *Worker) Drain(ctx context.Context, maxRounds int) (int, error) {
	total := 0
	for i := 0; i < maxRounds; i++ {
		results, err := w.RunOnce(ctx)
		if err != nil {
			return total, err
		}
		if len(results) == 0 {
			return total, nil
		}
		total += len(results)
	}
	return total, nil
}

// RunOnce claims one batch of jobs and runs it. Jobs sharing a concurrency
// key run serially in claim order; distinct keys run in parallel.
func (w *Worker) RunOnce(ctx context.Context) ([]Result, error) {
	names := w.names()
	if len(names) == 0 {
		return nil, nil
	}
	jobs, err := w.store.Claim(ctx, names, w.cfg.BatchSize, w.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	var order []string
	groups := make(map[string][]Job)
	for _, job := range jobs {
		key := job.ConcurrencyKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], job)
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, key := range order {
		group := groups[key]
		g.Go(func() error {
			for _, job := range group {
				result := w.process(gctx, job)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (w *Worker) process(ctx context.Context, job Job) Result {
	handler, ok := w.handler(job.Name)
	if !ok {
		return w.settle(ctx, Result{Job: job, Outcome: OutcomeFailed, Err: fmt.Errorf("jobqueue: no handler for %s", job.Name)})
	}

	start := time.Now()
	err := w.invoke(ctx, handler.Handle, job)
	result := Result{Job: job, Outcome: OutcomeCompleted, Err: err}
	metricResult := metrics.ResultSuccess
	if err != nil {
		result.Outcome = OutcomeFailed
		metricResult = metrics.ResultError
		if !job.Exhausted() {
			result.Outcome = OutcomeRetry
			metricResult = metrics.ResultRetry
		}
	}
	metrics.ObserveJob(job.Name, metricResult, time.Since(start))

	result = w.settle(ctx, result)
	if result.Outcome == OutcomeFailed && handler.Failed != nil {
		if ferr := handler.Failed(ctx, job, result.Err); ferr != nil {
			w.logger.Printf("job failure handler error: name=%s id=%s err=%v", job.Name, job.ID, ferr)
		}
	}
	return result
}

func (w *Worker) invoke(ctx context.Context, handle HandleFunc, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobqueue: handler panic: %v", r)
		}
	}()
	return handle(ctx, job)
}

func (w *Worker) settle(ctx context.Context, result Result) Result {
	now := w.clock.Now()
	job := result.Job
	switch result.Outcome {
	case OutcomeCompleted:
		if err := w.store.Complete(ctx, job.ID, now); err != nil && !errors.Is(err, ErrJobNotFound) {
			w.logger.Printf("job complete failed: name=%s id=%s err=%v", job.Name, job.ID, err)
		}
	case OutcomeRetry:
		w.logger.Printf("job retry: name=%s id=%s attempt=%d/%d err=%v", job.Name, job.ID, job.Attempts, job.MaxAttempts, result.Err)
		if err := w.store.Retry(ctx, job.ID, result.Err.Error(), now); err != nil && !errors.Is(err, ErrJobNotFound) {
			w.logger.Printf("job retry failed: name=%s id=%s err=%v", job.Name, job.ID, err)
		}
	case OutcomeFailed:
		w.logger.Printf("job failed: name=%s id=%s queue=%s err=%v", job.Name, job.ID, job.Queue, result.Err)
		if err := w.store.Fail(ctx, job.ID, result.Err.Error(), now); err != nil && !errors.Is(err, ErrJobNotFound) {
			w.logger.Printf("job fail update failed: name=%s id=%s err=%v", job.Name, job.ID, err)
		}
		if w.dlq != nil {
			if err := w.dlq.RecordFailure(ctx, job, result.Err); err != nil {
				w.logger.Printf("job dlq record failed: name=%s id=%s err=%v", job.Name, job.ID, err)
			}
		}
	}
	return result
}
