package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type funcBackend struct {
	op constants.Operation
	fn func(ctx context.Context, job entity.Job, progress backend.ProgressFunc) (backend.Result, error)
}

func (b funcBackend) Operation() constants.Operation { return b.op }
func (funcBackend) Schema() string                   { return "" }
func (b funcBackend) Execute(ctx context.Context, job entity.Job, progress backend.ProgressFunc) (backend.Result, error) {
	return b.fn(ctx, job, progress)
}

func newProcessor(t *testing.T, fn func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error)) *Processor {
	t.Helper()
	reg, err := backend.NewRegistry(funcBackend{op: constants.OpResize, fn: fn})
	require.NoError(t, err)
	return NewProcessor(reg, nil, nil)
}

func testJob(op constants.Operation) entity.Job {
	return entity.Job{ID: uuid.New(), BatchID: uuid.New(), Seq: 4, Operation: op, Inputs: []string{"in.png"}, Output: "out.png"}
}

func TestProcessSuccess(t *testing.T) {
	var got []float64
	p := newProcessor(t, func(ctx context.Context, job entity.Job, progress backend.ProgressFunc) (backend.Result, error) {
		assert.Equal(t, job.ID.String(), common.JobIDFromContext(ctx))
		progress(0.5)
		return backend.Result{Artifact: job.Output}, nil
	})
	job := testJob(constants.OpResize)

	out := p.Process(context.Background(), job, func(f float64) { got = append(got, f) })
	assert.Equal(t, constants.JobStateSucceeded, out.State)
	assert.Equal(t, "out.png", out.Artifact)
	assert.Equal(t, job.ID, out.JobID)
	assert.Equal(t, 4, out.Seq)
	assert.Nil(t, out.Failure)
	require.NotNil(t, out.StartedAt)
	assert.False(t, out.FinishedAt.Before(*out.StartedAt))
	assert.Equal(t, []float64{0.5}, got)
}

func TestProcessTypedFailure(t *testing.T) {
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		return backend.Result{}, common.NewFailure(constants.FailureCorruptInput, "decode in.png", errors.New("unexpected EOF"))
	})
	out := p.Process(context.Background(), testJob(constants.OpResize), nil)
	assert.Equal(t, constants.JobStateFailed, out.State)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.FailureCorruptInput, out.Failure.Kind)
	assert.Equal(t, "decode in.png: unexpected EOF", out.Failure.Message)
	assert.Empty(t, out.Artifact)
}

func TestProcessUntypedErrorIsInternal(t *testing.T) {
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		return backend.Result{}, errors.New("boom")
	})
	out := p.Process(context.Background(), testJob(constants.OpResize), nil)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.FailureInternal, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "boom")
}

func TestProcessPanicBecomesFailure(t *testing.T) {
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		panic("nil map")
	})
	out := p.Process(context.Background(), testJob(constants.OpResize), nil)
	assert.Equal(t, constants.JobStateFailed, out.State)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.FailureInternal, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "nil map")
}

func TestProcessCancelled(t *testing.T) {
	p := newProcessor(t, func(ctx context.Context, _ entity.Job, _ backend.ProgressFunc) (backend.Result, error) {
		<-ctx.Done()
		return backend.Result{}, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan entity.JobOutcome)
	go func() { done <- p.Process(ctx, testJob(constants.OpResize), nil) }()
	cancel()

	out := <-done
	assert.Equal(t, constants.JobStateCancelled, out.State)
	assert.Nil(t, out.Failure)
}

func TestProcessAlreadyCancelledSkipsBackend(t *testing.T) {
	called := false
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		called = true
		return backend.Result{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := p.Process(ctx, testJob(constants.OpResize), nil)
	assert.Equal(t, constants.JobStateCancelled, out.State)
	assert.False(t, called)
}

func TestProcessFailureAfterCancelKeepsKind(t *testing.T) {
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		return backend.Result{}, common.Failuref(constants.FailureIO, "disk full")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := p.Process(ctx, testJob(constants.OpResize), nil)
	assert.Equal(t, constants.JobStateFailed, out.State)
	assert.Equal(t, constants.FailureIO, out.Failure.Kind)
}

func TestProcessUnregisteredOperation(t *testing.T) {
	p := newProcessor(t, func(context.Context, entity.Job, backend.ProgressFunc) (backend.Result, error) {
		return backend.Result{}, nil
	})
	out := p.Process(context.Background(), testJob(constants.OpMerge), nil)
	assert.Equal(t, constants.JobStateFailed, out.State)
	assert.Equal(t, constants.FailureInternal, out.Failure.Kind)
}
