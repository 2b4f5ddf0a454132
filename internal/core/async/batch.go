package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/core/progress"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// batchRun owns the ready queue and workers of one batch.
type batchRun struct {
	id       uuid.UUID
	label    string
	limit    int
	jobs     []entity.Job
	reporter *progress.Reporter
	sched    *Scheduler
	logger   *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}

	mu        sync.Mutex
	ready     []entity.Job
	cancelled bool
	drained   []entity.JobOutcome
}

func newBatchRun(id uuid.UUID, label string, limit int, jobs []entity.Job, reporter *progress.Reporter, s *Scheduler) *batchRun {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make([]entity.Job, len(jobs))
	copy(ready, jobs)
	return &batchRun{
		id:       id,
		label:    label,
		limit:    limit,
		jobs:     jobs,
		reporter: reporter,
		sched:    s,
		logger:   s.logger.With("batch_id", id),
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
		ready:    ready,
	}
}

func (b *batchRun) run() {
	defer close(b.finished)
	defer b.cancel()

	workers := min(b.limit, len(b.jobs))
	var g errgroup.Group
	for w := 1; w <= workers; w++ {
		g.Go(func() error {
			b.work(w)
			return nil
		})
	}
	_ = g.Wait()

	// drained outcomes are recorded by requestCancel; wait for the reporter
	// to see every job terminal before summarizing
	<-b.reporter.Done()

	b.mu.Lock()
	drained := b.drained
	b.drained = nil
	b.mu.Unlock()
	for _, out := range drained {
		b.sched.persist(func(ctx context.Context) error { return b.sched.store.SaveOutcome(ctx, out) },
			"failed to save outcome", "batch_id", b.id, "job_id", out.JobID)
	}

	snap := b.reporter.Snapshot()
	rec := b.record(snap)
	b.sched.persist(func(ctx context.Context) error { return b.sched.store.FinishBatch(ctx, rec) },
		"failed to finish batch", "batch_id", b.id)
	b.logger.Info("batch completed",
		"total", snap.Total,
		"succeeded", snap.Succeeded,
		"failed", snap.Failed,
		"cancelled", snap.Cancelled,
	)
}

func (b *batchRun) work(workerID int) {
	b.logger.Debug("worker started", "worker_id", workerID)
	for {
		job, ok := b.next()
		if !ok {
			break
		}
		out := b.sched.proc.Process(b.ctx, job, func(f float64) {
			b.reporter.Progress(job.ID, f)
		})
		if b.reporter.Finish(out) {
			b.sched.persist(func(ctx context.Context) error { return b.sched.store.SaveOutcome(ctx, out) },
				"failed to save outcome", "batch_id", b.id, "job_id", out.JobID)
		}
	}
	b.logger.Debug("worker stopped", "worker_id", workerID)
}

// next pops the head of the ready queue and marks it started in the same
// critical section that checks the cancel flag, so nothing starts after
// requestCancel returns.
func (b *batchRun) next() (entity.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled || len(b.ready) == 0 {
		return entity.Job{}, false
	}
	job := b.ready[0]
	b.ready[0] = entity.Job{}
	b.ready = b.ready[1:]
	b.reporter.Started(job.ID)
	return job, true
}

// requestCancel is a no-op once the reporter has seen every job finish; the
// reporter decides that under its own lock, so a job finishing concurrently
// cannot leave a fully run batch marked cancelled.
func (b *batchRun) requestCancel() {
	b.mu.Lock()
	if b.cancelled || !b.reporter.MarkCancelRequested() {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	queued := b.ready
	b.ready = nil

	now := time.Now()
	for _, job := range queued {
		out := entity.CancelledOutcome(job, now)
		if b.reporter.Finish(out) {
			b.drained = append(b.drained, out)
		}
	}
	b.mu.Unlock()

	b.cancel()
	b.logger.Info("batch cancel requested", "dropped_jobs", len(queued))
}

func (b *batchRun) record(s entity.Snapshot) entity.BatchRecord {
	state := constants.BatchStateRunning
	if s.Done {
		state = constants.BatchStateCompleted
		if s.CancelRequested {
			state = constants.BatchStateCancelled
		}
	}
	return entity.BatchRecord{
		ID:          b.id,
		Label:       b.label,
		Concurrency: b.limit,
		Total:       s.Total,
		State:       state,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Cancelled:   s.Cancelled,
		CreatedAt:   s.CreatedAt,
		FinishedAt:  s.FinishedAt,
	}
}
