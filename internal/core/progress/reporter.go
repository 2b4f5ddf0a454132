// Package progress keeps the single read view of a batch: per-job state,
// aggregate counters and the event log subscribers replay.
package progress

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// minProgressStep is the smallest fraction change that is written to the
// event log. Smaller moves only update the job view.
const minProgressStep = 0.01

// Reporter serializes every mutation of one batch's state.
type Reporter struct {
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	batchID     uuid.UUID
	label       string
	concurrency int
	jobs        []entity.JobView
	index       map[uuid.UUID]int
	logged      []float64

	queued, running              int
	succeeded, failed, cancelled int
	cancelRequested              bool

	events     []entity.Event
	notify     chan struct{}
	done       chan struct{}
	createdAt  time.Time
	finishedAt *time.Time
}

type Option func(*Reporter)

func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLabel(label string, concurrency int) Option {
	return func(r *Reporter) {
		r.label = label
		r.concurrency = concurrency
	}
}

// New registers jobs as queued and logs one queued event per job.
func New(batchID uuid.UUID, jobs []entity.Job, opts ...Option) *Reporter {
	r := &Reporter{
		logger:  slog.Default(),
		now:     time.Now,
		batchID: batchID,
		jobs:    make([]entity.JobView, len(jobs)),
		index:   make(map[uuid.UUID]int, len(jobs)),
		logged:  make([]float64, len(jobs)),
		notify:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.createdAt = r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, j := range jobs {
		r.jobs[i] = entity.JobView{ID: j.ID, Seq: j.Seq, Operation: j.Operation, State: constants.JobStateQueued}
		r.index[j.ID] = i
		r.queued++
		r.appendLocked(entity.Event{JobID: j.ID, Type: constants.EventQueued})
	}
	r.maybeCompleteLocked()
	return r
}

// Started moves a queued job to running. It reports false when the job is
// unknown or no longer queued.
func (r *Reporter) Started(jobID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[jobID]
	if !ok || r.jobs[i].State != constants.JobStateQueued {
		r.logger.Warn("dropping start event", "batch_id", r.batchID, "job_id", jobID)
		return false
	}
	r.jobs[i].State = constants.JobStateRunning
	r.queued--
	r.running++
	r.appendLocked(entity.Event{JobID: jobID, Type: constants.EventStarted})
	return true
}

// Progress records a fraction for a running job. Updates for jobs that are
// not running are ignored.
func (r *Reporter) Progress(jobID uuid.UUID, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[jobID]
	if !ok || r.jobs[i].State != constants.JobStateRunning {
		return
	}
	r.jobs[i].Fraction = fraction
	last := r.logged[i]
	if fraction-last >= minProgressStep || (fraction == 1 && last < 1) {
		r.logged[i] = fraction
		r.appendLocked(entity.Event{JobID: jobID, Type: constants.EventProgress, Fraction: fraction})
	}
}

// Finish records the terminal outcome of a job. Only the first outcome for
// a job is kept; later ones return false.
func (r *Reporter) Finish(out entity.JobOutcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[out.JobID]
	if !ok || r.jobs[i].State.Terminal() || !out.State.Terminal() {
		r.logger.Warn("dropping terminal event",
			"batch_id", r.batchID, "job_id", out.JobID, "state", out.State)
		return false
	}
	switch r.jobs[i].State {
	case constants.JobStateQueued:
		r.queued--
	case constants.JobStateRunning:
		r.running--
	}
	switch out.State {
	case constants.JobStateSucceeded:
		r.succeeded++
		r.jobs[i].Fraction = 1
	case constants.JobStateFailed:
		r.failed++
	case constants.JobStateCancelled:
		r.cancelled++
	}
	stored := out
	r.jobs[i].State = out.State
	r.jobs[i].Outcome = &stored
	r.appendLocked(entity.Event{
		JobID:    out.JobID,
		Type:     constants.EventForState(out.State),
		Fraction: r.jobs[i].Fraction,
		Outcome:  &stored,
	})
	r.maybeCompleteLocked()
	return true
}

// MarkCancelRequested flags the snapshot; the scheduler owns the actual cancel.
// It reports false, and changes nothing, once every job is terminal.
func (r *Reporter) MarkCancelRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishedAt != nil {
		return false
	}
	r.cancelRequested = true
	return true
}

// Done is closed once every job is terminal.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Snapshot returns a deep copy of the current state.
func (r *Reporter) Snapshot() entity.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]entity.JobView, len(r.jobs))
	for i, j := range r.jobs {
		if j.Outcome != nil {
			o := *j.Outcome
			j.Outcome = &o
		}
		jobs[i] = j
	}
	s := entity.Snapshot{
		BatchID:         r.batchID,
		Label:           r.label,
		Concurrency:     r.concurrency,
		Total:           len(r.jobs),
		Queued:          r.queued,
		Running:         r.running,
		Pending:         r.queued + r.running,
		Succeeded:       r.succeeded,
		Failed:          r.failed,
		Cancelled:       r.cancelled,
		CancelRequested: r.cancelRequested,
		Done:            r.finishedAt != nil,
		Jobs:            jobs,
		CreatedAt:       r.createdAt,
	}
	if r.finishedAt != nil {
		t := *r.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// Subscribe returns the batch's event sequence. Every range over it starts
// from the first event and ends after the batch_completed event, or when
// ctx is done. Sequences never skip lifecycle events.
func (r *Reporter) Subscribe(ctx context.Context) iter.Seq[entity.Event] {
	return func(yield func(entity.Event) bool) {
		next := 0
		for {
			r.mu.Lock()
			pending := r.events[next:len(r.events):len(r.events)]
			wait := r.notify
			r.mu.Unlock()

			for _, ev := range pending {
				next++
				if !yield(ev) {
					return
				}
				if ev.Type == constants.EventBatchCompleted {
					return
				}
			}
			if len(pending) > 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}
}

// appendLocked stamps and logs ev and wakes subscribers. Callers hold mu.
func (r *Reporter) appendLocked(ev entity.Event) {
	ev.Seq = int64(len(r.events) + 1)
	ev.BatchID = r.batchID
	ev.At = r.now()
	r.events = append(r.events, ev)
	close(r.notify)
	r.notify = make(chan struct{})
}

func (r *Reporter) maybeCompleteLocked() {
	if r.finishedAt != nil || r.queued+r.running > 0 {
		return
	}
	t := r.now()
	r.finishedAt = &t
	r.appendLocked(entity.Event{Type: constants.EventBatchCompleted})
	close(r.done)
}
