// Package backend holds the operation backends the scheduler dispatches
// jobs to, and the immutable registry that maps operations onto them.
package backend

import (
	"context"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// ProgressFunc receives fractions in [0, 1] while a job runs.
type ProgressFunc func(fraction float64)

// Result is what a successful Execute produced.
type Result struct {
	// Artifact is the declared output path (file or directory).
	Artifact string
	// Artifacts lists the files written, for directory outputs.
	Artifacts []string
	Metadata  map[string]string
}

// Backend performs one operation on one job. Implementations must be safe
// for concurrent use across jobs and must watch ctx at safe points.
// Failures are returned as *common.BackendFailure; returning ctx.Err()
// signals the job observed cancellation.
type Backend interface {
	Operation() constants.Operation
	// Schema is the JSON schema the job's option bag must satisfy.
	Schema() string
	Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error)
}

// JobChecker is implemented by backends that need checks across fields
// (for example option length against input count) at submission time.
type JobChecker interface {
	CheckJob(job entity.JobSpec) error
}

func (p ProgressFunc) report(f float64) {
	if p == nil {
		return
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	p(f)
}

// step reports progress for item i of n within [lo, hi].
func (p ProgressFunc) step(lo, hi float64, i, n int) {
	if n <= 0 {
		p.report(hi)
		return
	}
	p.report(lo + (hi-lo)*float64(i)/float64(n))
}
