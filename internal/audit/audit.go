package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Batch actions recorded by operators.
const (
	ActionBatchCreate  = "batch.create"
	ActionBatchApprove = "batch.approve"
	ActionBatchSend    = "batch.send"
	ActionBatchDelete  = "batch.delete"
)

// ResourceBatch is the resource type of batch actions.
const ResourceBatch = "billing_batch"

// Outcomes of an audited action.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one operator action against a billing resource.
type Entry struct {
	ID            string
	Actor         string
	Action        string
	ResourceType  string
	ResourceID    string
	Outcome       string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID returns a time-ordered audit id.
func NewID() string {
	return "audit-" + ulid.Make().String()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ForBatch builds the entry of a batch action. actionErr selects the outcome
// and metadata, when not nil, is stored as JSON.
func ForBatch(action, batchID, actor string, metadata any, actionErr error) Entry {
	entry := Entry{
		Actor:        actor,
		Action:       action,
		ResourceType: ResourceBatch,
		ResourceID:   batchID,
		Outcome:      OutcomeOK,
	}
	if actionErr != nil {
		entry.Outcome = OutcomeError
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			entry.Metadata = data
		}
	}
	return entry
}

// Prepare fills the generated fields of entry.
func Prepare(entry Entry, now time.Time) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}
