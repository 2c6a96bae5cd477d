package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsync/internal/config"
	"github.com/dgallion1/docsync/internal/docstore"
	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/metrics"
)

// Orchestrator manages the document sync pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	deps  Deps
	locks *docLocks
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to run workers.
func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		deps:  deps.withDefaults(),
		locks: newDocLocks(),
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.locks, o.log, o.cfg.BoilerplateText, o.cfg.VerifyAfterSync)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// CancelJob requests cancellation of a queued or running job. found is false
// for unknown ids; cancelled is false when the job had already finished.
func (o *Orchestrator) CancelJob(id string) (found, cancelled bool) {
	job := o.jobs.Get(id)
	if job == nil {
		return false, false
	}
	return true, job.Cancel()
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns rolling sync cycle latencies.
func (o *Orchestrator) Stats() metrics.StatsSnapshot {
	return o.deps.Stats.Snapshot()
}

// Documents returns the document store for direct reads by API handlers.
func (o *Orchestrator) Documents() docstore.Store {
	return o.deps.Docs
}

// UpdateDocument loads a document, applies fn and saves it, holding the
// document's lock so that no sync cycle runs in between.
func (o *Orchestrator) UpdateDocument(ctx context.Context, docID string, fn func(*document.Document) error) error {
	unlock := o.locks.Lock(docID)
	defer unlock()

	doc, err := o.deps.Docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return o.deps.Docs.Put(ctx, doc)
}
