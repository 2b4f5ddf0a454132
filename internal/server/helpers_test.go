package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/async"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// gatedResize succeeds for every job once gate is closed; a nil gate never blocks.
type gatedResize struct {
	gate chan struct{}
}

func (gatedResize) Operation() constants.Operation { return constants.OpResize }
func (gatedResize) Schema() string                 { return "" }
func (g gatedResize) Execute(ctx context.Context, job entity.Job, progress backend.ProgressFunc) (backend.Result, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return backend.Result{}, ctx.Err()
		}
	}
	if job.Seq == 1 {
		return backend.Result{}, common.Failuref(constants.FailureCorruptInput, "bad pixels")
	}
	progress(1)
	return backend.Result{Artifact: job.Output}, nil
}

func newScheduler(t *testing.T, gate chan struct{}) *async.Scheduler {
	t.Helper()
	reg, err := backend.NewRegistry(gatedResize{gate: gate})
	require.NoError(t, err)
	s := async.NewScheduler(reg, nil, async.WithDefaultConcurrency(2))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func batchSpec(t *testing.T, n int) entity.BatchSpec {
	t.Helper()
	dir := t.TempDir()
	spec := entity.BatchSpec{Label: "api"}
	for i := range n {
		in := filepath.Join(dir, fmt.Sprintf("in_%d.png", i))
		require.NoError(t, os.WriteFile(in, []byte("x"), 0o644))
		spec.Jobs = append(spec.Jobs, entity.JobSpec{
			Operation: constants.OpResize,
			Inputs:    []string{in},
			Output:    filepath.Join(dir, fmt.Sprintf("out_%d.png", i)),
			Options:   map[string]any{"width": 10},
		})
	}
	return spec
}
