package core

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Processor runs a single job against its registered backend and turns
// whatever happens into exactly one JobOutcome.
type Processor struct {
	registry *backend.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewProcessor(registry *backend.Registry, logger *slog.Logger, tracer trace.Tracer) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/joseph-ayodele/docbatch/internal/core")
	}
	return &Processor{registry: registry, logger: logger, tracer: tracer, now: time.Now}
}

// Process executes job. ctx carries the batch's cancellation.
func (p *Processor) Process(ctx context.Context, job entity.Job, progress backend.ProgressFunc) entity.JobOutcome {
	ctx = common.WithJob(ctx, job.BatchID.String(), job.ID.String())
	ctx, span := p.tracer.Start(ctx, "docbatch.job", trace.WithAttributes(
		attribute.String("docbatch.batch_id", job.BatchID.String()),
		attribute.String("docbatch.job_id", job.ID.String()),
		attribute.String("docbatch.operation", string(job.Operation)),
		attribute.Int("docbatch.inputs", len(job.Inputs)),
	))
	defer span.End()
	logger := common.LoggerFrom(ctx, p.logger)

	started := p.now()
	out := entity.JobOutcome{
		JobID:     job.ID,
		BatchID:   job.BatchID,
		Seq:       job.Seq,
		Operation: job.Operation,
		Inputs:    job.Inputs,
		Output:    job.Output,
		StartedAt: &started,
	}

	res, err := p.execute(ctx, job, progress)
	out.FinishedAt = p.now()
	out.Duration = out.FinishedAt.Sub(started)

	switch {
	case err == nil:
		out.State = constants.JobStateSucceeded
		out.Artifact = res.Artifact
		out.Artifacts = res.Artifacts
		span.SetStatus(codes.Ok, "")
		logger.Info("job succeeded", "operation", job.Operation, "artifact", res.Artifact, "duration_ms", out.Duration.Milliseconds())
	case cancelled(ctx, err):
		out.State = constants.JobStateCancelled
		span.SetAttributes(attribute.Bool("docbatch.cancelled", true))
		logger.Info("job cancelled", "operation", job.Operation, "duration_ms", out.Duration.Milliseconds())
	default:
		f, ok := common.AsFailure(err)
		if !ok {
			f = common.NewFailure(constants.FailureInternal, "backend error", err)
		}
		out.State = constants.JobStateFailed
		msg := f.Message
		if f.Cause != nil {
			msg += ": " + f.Cause.Error()
		}
		out.Failure = &entity.Failure{Kind: f.Kind, Message: msg}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(f.Kind))
		logger.Warn("job failed", "operation", job.Operation, "kind", f.Kind, "error", err, "duration_ms", out.Duration.Milliseconds())
	}
	return out
}

// execute calls the backend, turning a panic into an internal failure so
// one bad job cannot take the worker down.
func (p *Processor) execute(ctx context.Context, job entity.Job, progress backend.ProgressFunc) (res backend.Result, err error) {
	b, ok := p.registry.Lookup(job.Operation)
	if !ok {
		return backend.Result{}, common.Failuref(constants.FailureInternal, "no backend for %q", job.Operation)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("backend panic", "operation", job.Operation, "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			res, err = backend.Result{}, common.Failuref(constants.FailureInternal, "backend panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return backend.Result{}, err
	}
	return b.Execute(ctx, job, progress)
}

// cancelled decides whether err is the job observing batch cancellation.
// Typed failures keep their kind unless they wrap the context error.
func cancelled(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if _, ok := common.AsFailure(err); ok {
		return false
	}
	return ctx.Err() != nil
}
