package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/docsync/internal/reconcile"
	"github.com/google/uuid"
)

// JobStatus represents the state of a sync job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusQuerying    JobStatus = "querying"
	StatusReconciling JobStatus = "reconciling"
	StatusVerifying   JobStatus = "verifying"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// Terminal reports whether no further transitions follow.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job tracks the state of a single document sync.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	cancel          context.CancelFunc
	cancelRequested bool
}

// Progress tracks what a sync has done so far.
type Progress struct {
	Queries     int      `json:"queries"`
	Inserted    int      `json:"inserted"`
	Deleted     int      `json:"deleted"`
	Moved       int      `json:"moved"`
	Refreshed   int      `json:"refreshed"`
	Diagnostics []string `json:"diagnostics"`
	Warnings    []string `json:"warnings"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued sync job for a document.
func NewJob(docID string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// AddWarning records a non-fatal problem, such as a degraded layout.
func (j *Job) AddWarning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Warnings = append(j.Progress.Warnings, msg)
	j.UpdatedAt = time.Now()
}

// SetQueries records how many queries feed the document.
func (j *Job) SetQueries(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Queries = n
	j.UpdatedAt = time.Now()
}

// ApplyResult copies reconciliation counts and warnings into the progress.
func (j *Job) ApplyResult(res *reconcile.Result) {
	if res == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Inserted += res.Count(reconcile.OpInsert)
	j.Progress.Deleted += res.Count(reconcile.OpDelete)
	j.Progress.Moved += res.Count(reconcile.OpMove)
	j.Progress.Refreshed += res.Count(reconcile.OpRefresh) + res.Count(reconcile.OpClear)
	j.Progress.Warnings = append(j.Progress.Warnings, res.Warnings...)
	j.UpdatedAt = time.Now()
}

// SetDiagnostics stores the verifier output.
func (j *Job) SetDiagnostics(diags []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Diagnostics = diags
	j.UpdatedAt = time.Now()
}

// start attaches the cancel function of a running job. It returns false when
// cancellation was requested before the job started.
func (j *Job) start(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelRequested {
		return false
	}
	j.cancel = cancel
	return true
}

// Cancel requests cancellation. It returns false if the job already finished.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return false
	}
	j.cancelRequested = true
	if j.cancel != nil {
		j.cancel()
	}
	j.UpdatedAt = time.Now()
	return true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Diagnostics = nonNil(p.Diagnostics)
	p.Warnings = nonNil(p.Warnings)
	p.Errors = nonNil(p.Errors)
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
