package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docsync/internal/bookmark"
	"github.com/dgallion1/docsync/internal/docdata"
	"github.com/dgallion1/docsync/internal/docstore"
	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/layout"
	"github.com/dgallion1/docsync/internal/metrics"
	"github.com/dgallion1/docsync/internal/reconcile"
	"github.com/dgallion1/docsync/internal/verify"
	"github.com/dgallion1/docsync/internal/workitem"
)

// Workstore runs queries and fetches work items.
type Workstore interface {
	workitem.Fetcher
	RunQuery(ctx context.Context, queryID string) (workitem.Result, error)
}

// LayoutSource resolves layout names, degrading to an empty layout with a
// warning.
type LayoutSource interface {
	LoadOrEmpty(name string) (*layout.Layout, string)
}

// Deps are the collaborators of the sync pipeline.
type Deps struct {
	Docs      docstore.Store
	Workstore Workstore
	Layouts   LayoutSource
	Recorder  metrics.Recorder
	Stats     *metrics.CycleStats
}

func (d Deps) withDefaults() Deps {
	if d.Recorder == nil {
		d.Recorder = metrics.NoopRecorder{}
	}
	if d.Stats == nil {
		d.Stats = metrics.NewCycleStats(time.Hour)
	}
	return d
}

// Worker runs sync cycles.
type Worker struct {
	deps        Deps
	locks       *docLocks
	log         *slog.Logger
	boilerplate string
	verify      bool
	backoff     func(int) time.Duration
}

func NewWorker(deps Deps, locks *docLocks, log *slog.Logger, boilerplate string, verifyAfterSync bool) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if locks == nil {
		locks = newDocLocks()
	}
	return &Worker{
		deps:        deps.withDefaults(),
		locks:       locks,
		log:         log,
		boilerplate: boilerplate,
		verify:      verifyAfterSync,
		backoff:     Backoff,
	}
}

// Process runs one sync cycle for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !job.start(cancel) {
		log.Info("job cancelled before start")
		job.SetStatus(StatusCancelled, "cancelled before start")
		w.deps.Recorder.IncCycleOutcome(metrics.OutcomeCancelled)
		return
	}

	unlock := w.locks.Lock(job.DocID)
	defer unlock()

	start := time.Now()
	outcome := w.sync(ctx, log, job)
	elapsed := time.Since(start)
	w.deps.Stats.Record(elapsed)
	w.deps.Recorder.ObserveCycleDuration(elapsed)
	w.deps.Recorder.IncCycleOutcome(outcome)
}

func (w *Worker) sync(ctx context.Context, log *slog.Logger, job *Job) metrics.Outcome {
	doc, err := w.deps.Docs.Get(ctx, job.DocID)
	if err != nil {
		return w.fail(log, job, "loading", err)
	}
	defs, err := docdata.New(doc).Queries()
	if err != nil {
		return w.fail(log, job, "loading", err)
	}

	// Phase 1: run every query and build its tree. Nothing is written to
	// the document until all of them are well-formed.
	job.SetStatus(StatusQuerying, "running queries")
	job.SetQueries(len(defs))
	queries, err := w.buildQueries(ctx, log, job, defs)
	if err != nil {
		if ctx.Err() != nil {
			job.SetStatus(StatusCancelled, "querying")
			return metrics.OutcomeCancelled
		}
		return w.fail(log, job, "querying", err)
	}

	// Phase 2: reconcile.
	job.SetStatus(StatusReconciling, "reconciling")
	res, runErr := reconcile.New(log, w.boilerplate).Run(ctx, doc, queries)
	job.ApplyResult(res)
	if res != nil {
		for _, kind := range []reconcile.OpKind{reconcile.OpInsert, reconcile.OpDelete, reconcile.OpMove, reconcile.OpRefresh, reconcile.OpClear} {
			w.deps.Recorder.AddOperations(string(kind), res.Count(kind))
		}
	}

	// The document is saved even when the cycle was cancelled.
	if err := w.deps.Docs.Put(context.WithoutCancel(ctx), doc); err != nil {
		return w.fail(log, job, "saving", err)
	}
	switch {
	case errors.Is(runErr, reconcile.ErrCancelled):
		log.Info("sync cancelled", "snapshots", len(res.Snapshots))
		job.SetStatus(StatusCancelled, "reconciling")
		return metrics.OutcomeCancelled
	case runErr != nil:
		return w.fail(log, job, "reconciling", runErr)
	}

	// Phase 3: audit.
	if w.verify {
		job.SetStatus(StatusVerifying, "verifying")
		diags, err := VerifyDocument(doc)
		if err != nil {
			log.Warn("verification skipped", "error", err)
			job.AddWarning(fmt.Sprintf("verification skipped: %s", err))
		} else {
			job.SetDiagnostics(diags)
			w.deps.Recorder.AddDiagnostics(len(diags))
			for _, d := range diags {
				log.Warn("verification diagnostic", "diagnostic", d)
			}
		}
	}

	job.SetStatus(StatusCompleted, "done")
	snap := job.Snapshot()
	log.Info("sync complete",
		"queries", snap.Progress.Queries,
		"inserted", snap.Progress.Inserted,
		"deleted", snap.Progress.Deleted,
		"moved", snap.Progress.Moved,
		"diagnostics", len(snap.Progress.Diagnostics),
	)
	return metrics.OutcomeCompleted
}

func (w *Worker) buildQueries(ctx context.Context, log *slog.Logger, job *Job, defs []docdata.QueryDef) ([]reconcile.Query, error) {
	fetcher := retryingFetcher{next: w.deps.Workstore, log: log, backoff: w.backoff}
	queries := make([]reconcile.Query, 0, len(defs))

	for _, def := range defs {
		lay, warning := w.deps.Layouts.LoadOrEmpty(def.Layout)
		if warning != "" {
			log.Warn("degraded layout", "query", def.Index, "layout", def.Layout, "warning", warning)
			job.AddWarning(fmt.Sprintf("query %d: %s", def.Index, warning))
			w.deps.Recorder.IncDegradedLayout()
		}

		raw, err := retry(ctx, log, w.backoff, "run_query", func() (workitem.Result, error) {
			return w.deps.Workstore.RunQuery(ctx, def.QueryID)
		})
		if err != nil {
			return nil, fmt.Errorf("query %d (%s): %w", def.Index, def.QueryID, err)
		}
		if raw.Mode == "" {
			raw.Mode = def.Mode
		}

		tree, err := workitem.Build(ctx, raw, fetcher, lay.Fields())
		if err != nil {
			return nil, fmt.Errorf("query %d (%s): %w", def.Index, def.QueryID, err)
		}
		log.Info("query built", "query", def.Index, "mode", tree.Mode, "items", tree.Len())
		queries = append(queries, reconcile.Query{Index: def.Index, Tree: tree, Layout: lay})
	}
	return queries, nil
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) metrics.Outcome {
	var se *workitem.StructureError
	if errors.As(err, &se) {
		log.Error("malformed query result, cycle aborted", "phase", phase, "error", err)
	} else {
		log.Error("sync failed", "phase", phase, "error", err)
	}
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
	return metrics.OutcomeFailed
}

// VerifyDocument audits doc against the ids recorded for each of its queries.
func VerifyDocument(doc *document.Document) ([]string, error) {
	store := docdata.New(doc)
	defs, err := store.Queries()
	if err != nil {
		return nil, err
	}
	expected := verify.Expected{}
	for _, d := range defs {
		ids, _, err := store.QueryItems(d.Index)
		if err != nil {
			return nil, err
		}
		expected.Add(d.Index, ids...)
	}
	v := verify.New(bookmark.Codec{}, verify.TagDecoderFunc(docdata.ControlItem))
	return v.Verify(doc, expected), nil
}
