package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/dgallion1/docsync/internal/reconcile"
)

func TestNewJob(t *testing.T) {
	a := NewJob("doc-1")
	b := NewJob("doc-1")
	if a.ID == b.ID {
		t.Errorf("expected distinct job ids, got %q twice", a.ID)
	}
	if a.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, a.Status)
	}
	if a.DocID != "doc-1" {
		t.Errorf("expected doc id %q, got %q", "doc-1", a.DocID)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusQuerying, "running queries"},
		{StatusReconciling, "reconciling"},
		{StatusVerifying, "verifying"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusQuerying, StatusReconciling, StatusVerifying} {
		if s.Terminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("query 0 failed")
	job.AddError("query 1 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "query 0 failed" {
		t.Errorf("expected first error %q, got %q", "query 0 failed", snap.Progress.Errors[0])
	}
}

func TestJob_ApplyResult(t *testing.T) {
	job := &Job{ID: "res-test", UpdatedAt: time.Now()}
	job.ApplyResult(&reconcile.Result{
		Ops: []reconcile.Op{
			{Kind: reconcile.OpInsert, ID: 1},
			{Kind: reconcile.OpInsert, ID: 2},
			{Kind: reconcile.OpDelete, ID: 3},
			{Kind: reconcile.OpMove, ID: 4},
			{Kind: reconcile.OpRefresh, Query: -1, ID: 5},
			{Kind: reconcile.OpClear, Query: -1, ID: 6},
		},
		Warnings: []string{"layout degraded"},
	})
	job.ApplyResult(nil)

	p := job.Snapshot().Progress
	if p.Inserted != 2 || p.Deleted != 1 || p.Moved != 1 || p.Refreshed != 2 {
		t.Errorf("expected 2/1/1/2 inserted/deleted/moved/refreshed, got %d/%d/%d/%d",
			p.Inserted, p.Deleted, p.Moved, p.Refreshed)
	}
	if len(p.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(p.Warnings))
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.Warnings == nil || snap.Progress.Diagnostics == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJob_CancelBeforeStart(t *testing.T) {
	job := NewJob("doc")
	if !job.Cancel() {
		t.Fatal("expected queued job to accept cancellation")
	}
	if job.start(func() {}) {
		t.Error("expected start to refuse a cancelled job")
	}
}

func TestJob_CancelRunning(t *testing.T) {
	job := NewJob("doc")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !job.start(cancel) {
		t.Fatal("expected start to succeed")
	}
	job.Cancel()
	if ctx.Err() == nil {
		t.Error("expected running job's context to be cancelled")
	}
}

func TestJob_CancelFinished(t *testing.T) {
	job := NewJob("doc")
	job.SetStatus(StatusCompleted, "done")
	if job.Cancel() {
		t.Error("expected completed job to reject cancellation")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusReconciling, UpdatedAt: time.Now()}
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", Status: StatusCompleted, UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected running job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
