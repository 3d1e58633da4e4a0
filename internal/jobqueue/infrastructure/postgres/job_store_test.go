package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"abstraction-billing/internal/jobqueue"
	jobrepo "abstraction-billing/internal/jobqueue/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestJobStore_SingletonClaimAndDelete(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "billing_jobs") || !tableExists(db, "billing_dead_letter_jobs") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	queue := jobqueue.QueueName("test.job", "pg-batch")
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_jobs WHERE queue = $1", queue)

	store := jobrepo.NewJobStore(db)
	dlq := jobrepo.NewDLQStore(db)
	now := time.Date(2020, time.April, 1, 9, 0, 0, 0, time.UTC)

	msg := jobqueue.Message{Name: "test.job", Queue: queue, SingletonKey: "pg-batch", Payload: map[string]string{"batch_id": "pg-batch"}}
	job, err := jobqueue.NewJob(msg, now)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	inserted, err := store.Insert(ctx, job)
	if err != nil || !inserted {
		t.Fatalf("insert: inserted=%v err=%v", inserted, err)
	}
	dup, _ := jobqueue.NewJob(msg, now)
	inserted, err = store.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if inserted {
		t.Fatalf("expected live singleton to block duplicate insert")
	}

	claimed, err := store.Claim(ctx, []string{"test.job"}, 10, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != job.ID || claimed[0].Attempts != 1 || claimed[0].State != jobqueue.StateActive {
		t.Fatalf("claim mismatch: %+v", claimed)
	}

	if err := store.Fail(ctx, job.ID, "boom", now); err != nil {
		t.Fatalf("fail: %v", err)
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_dead_letter_jobs WHERE queue = $1", queue)
	if err := dlq.RecordFailure(ctx, claimed[0], errors.New("boom")); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := dlq.RecordFailure(ctx, claimed[0], errors.New("boom again")); err != nil {
		t.Fatalf("record repeated failure: %v", err)
	}
	letters, err := dlq.ListByQueue(ctx, queue)
	if err != nil {
		t.Fatalf("list dead letters: %v", err)
	}
	if len(letters) != 1 || letters[0].Failures != 2 || letters[0].Error != "boom again" || letters[0].JobAttempts != 1 {
		t.Fatalf("dead letter mismatch: %+v", letters)
	}

	n, err := store.DeleteQueue(ctx, queue)
	if err != nil {
		t.Fatalf("delete queue: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted mismatch: got=%d want=1", n)
	}
	if err := store.Complete(ctx, job.ID, now); !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if letters, _ := dlq.ListByQueue(ctx, queue); len(letters) != 1 {
		t.Fatalf("dead letters should survive queue deletion: got=%d", len(letters))
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM billing_dead_letter_jobs WHERE job_id = $1", job.ID)
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
