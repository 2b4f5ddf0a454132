// Package async turns submitted batches into bounded sets of concurrently
// running jobs and exposes their progress.
package async

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/core/progress"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// OutcomeStore persists batch summaries and job outcomes. Errors are
// logged and never affect job execution.
type OutcomeStore interface {
	CreateBatch(ctx context.Context, rec entity.BatchRecord) error
	SaveOutcome(ctx context.Context, out entity.JobOutcome) error
	FinishBatch(ctx context.Context, rec entity.BatchRecord) error
}

type Scheduler struct {
	registry     *backend.Registry
	proc         *core.Processor
	logger       *slog.Logger
	concurrency  int
	store        OutcomeStore
	tracer       trace.Tracer
	storeTimeout time.Duration

	mu      sync.RWMutex
	batches map[uuid.UUID]*batchRun
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithDefaultConcurrency sets the worker count for batches that do not ask for one.
func WithDefaultConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithOutcomeStore(store OutcomeStore) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = t
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func NewScheduler(registry *backend.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		registry:     registry,
		logger:       logger,
		concurrency:  runtime.NumCPU(),
		storeTimeout: 5 * time.Second,
		batches:      make(map[uuid.UUID]*batchRun),
	}
	for _, o := range opts {
		o(s)
	}
	s.proc = core.NewProcessor(registry, logger, s.tracer)
	return s
}

// Submit validates the whole batch and starts it. Nothing is queued when
// any job is invalid; the returned error is common.ValidationErrors.
func (s *Scheduler) Submit(ctx context.Context, spec entity.BatchSpec) (entity.BatchHandle, error) {
	if err := s.validate(spec); err != nil {
		s.logger.Warn("batch rejected", "jobs", len(spec.Jobs), "error", err)
		return entity.BatchHandle{}, err
	}
	limit := spec.Concurrency
	if limit == 0 {
		limit = s.concurrency
	}

	id := uuid.New()
	jobs := buildJobs(id, spec.Jobs)
	reporter := progress.New(id, jobs,
		progress.WithLogger(s.logger),
		progress.WithLabel(spec.Label, limit),
	)
	run := newBatchRun(id, spec.Label, limit, jobs, reporter, s)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		run.cancel()
		return entity.BatchHandle{}, common.ErrSchedulerClose
	}
	s.batches[id] = run
	s.wg.Add(1)
	s.mu.Unlock()

	if s.store != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		if err := s.store.CreateBatch(sctx, run.record(reporter.Snapshot())); err != nil {
			s.logger.Error("failed to record batch", "batch_id", id, "error", err)
		}
		cancel()
	}

	s.logger.Info("batch submitted", "batch_id", id, "jobs", len(jobs), "concurrency", limit, "label", spec.Label)
	go func() {
		defer s.wg.Done()
		run.run()
	}()

	handle := entity.BatchHandle{ID: id, JobIDs: make([]uuid.UUID, len(jobs))}
	for i, j := range jobs {
		handle.JobIDs[i] = j.ID
	}
	return handle, nil
}

// RequestCancel acknowledges immediately. Queued jobs become Cancelled
// before it returns; running jobs see their context cancelled.
func (s *Scheduler) RequestCancel(id uuid.UUID) error {
	run, err := s.lookup(id)
	if err != nil {
		return err
	}
	run.requestCancel()
	return nil
}

// Subscribe returns a restartable event sequence for the batch.
func (s *Scheduler) Subscribe(ctx context.Context, id uuid.UUID) (iter.Seq[entity.Event], error) {
	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return run.reporter.Subscribe(ctx), nil
}

// Snapshot returns the batch's current counters and per-job states.
func (s *Scheduler) Snapshot(id uuid.UUID) (entity.Snapshot, error) {
	run, err := s.lookup(id)
	if err != nil {
		return entity.Snapshot{}, err
	}
	return run.reporter.Snapshot(), nil
}

// Wait blocks until the batch is finished or ctx ends.
func (s *Scheduler) Wait(ctx context.Context, id uuid.UUID) (entity.Snapshot, error) {
	run, err := s.lookup(id)
	if err != nil {
		return entity.Snapshot{}, err
	}
	select {
	case <-run.finished:
		return run.reporter.Snapshot(), nil
	case <-ctx.Done():
		return run.reporter.Snapshot(), ctx.Err()
	}
}

// Release drops a finished batch from memory. Its outcomes stay in the store.
func (s *Scheduler) Release(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrBatchNotFound, id)
	}
	select {
	case <-run.finished:
	default:
		return fmt.Errorf("%w: %s", common.ErrBatchRunning, id)
	}
	delete(s.batches, id)
	return nil
}

// Batches lists the ids currently held in memory.
func (s *Scheduler) Batches() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.batches))
	for id := range s.batches {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops accepting batches, cancels running ones and waits for
// their workers until ctx ends.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	runs := make([]*batchRun, 0, len(s.batches))
	for _, r := range s.batches {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.requestCancel()
	}

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown interrupted by context")
	case <-done:
		s.logger.Info("scheduler drained, shutdown complete")
	}
}

func (s *Scheduler) lookup(id uuid.UUID) (*batchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrBatchNotFound, id)
	}
	return run, nil
}

func (s *Scheduler) persist(fn func(ctx context.Context) error, msg string, args ...any) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Error(msg, append(args, "error", err)...)
	}
}
