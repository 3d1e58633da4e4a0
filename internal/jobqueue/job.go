package jobqueue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// State of a queued job.
type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var (
	// ErrEmptyName is returned when publishing a message without a job name.
	ErrEmptyName = errors.New("jobqueue: empty job name")
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("jobqueue: job not found")
)

// Message is a request to enqueue a job.
type Message struct {
	// Name selects the handler.
	Name string
	// Queue groups jobs for deletion. Defaults to Name.
	Queue string
	// SingletonKey deduplicates jobs within a queue while one is pending or active.
	SingletonKey string
	Payload      any
	MaxAttempts  int
}

// Job is a persisted unit of queued work.
type Job struct {
	ID           string
	Name         string
	Queue        string
	SingletonKey string
	Payload      json.RawMessage
	State        State
	Attempts     int
	MaxAttempts  int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QueueName scopes a job name to a batch.
func QueueName(name, batchID string) string {
	return name + "." + batchID
}

// NewJob builds a pending job from a message.
func NewJob(msg Message, now time.Time) (Job, error) {
	if msg.Name == "" {
		return Job{}, ErrEmptyName
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return Job{}, err
	}
	queue := msg.Queue
	if queue == "" {
		queue = msg.Name
	}
	maxAttempts := msg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	now = now.UTC()
	return Job{
		ID:           NewJobID(),
		Name:         msg.Name,
		Queue:        queue,
		SingletonKey: msg.SingletonKey,
		Payload:      payload,
		State:        StatePending,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// ConcurrencyKey serialises jobs sharing a singleton key, otherwise a queue.
func (j Job) ConcurrencyKey() string {
	if j.SingletonKey != "" {
		return j.Queue + "#" + j.SingletonKey
	}
	return j.Queue
}

// Exhausted reports whether a failure should be final.
func (j Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// NewJobID returns a time-ordered identifier.
func NewJobID() string {
	return ulid.Make().String()
}
