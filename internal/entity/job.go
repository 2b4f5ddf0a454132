package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
)

// JobSpec is the caller's description of one unit of work.
type JobSpec struct {
	Operation constants.Operation `json:"operation" validate:"required"`
	Inputs    []string            `json:"inputs"`
	Output    string              `json:"output" validate:"required"`
	Options   map[string]any      `json:"options,omitempty"`
}

// Job is an accepted JobSpec. Immutable once a batch is submitted.
type Job struct {
	ID        uuid.UUID           `json:"id"`
	BatchID   uuid.UUID           `json:"batch_id"`
	Seq       int                 `json:"seq"`
	Operation constants.Operation `json:"operation"`
	Inputs    []string            `json:"inputs"`
	Output    string              `json:"output"`
	Options   map[string]any      `json:"options,omitempty"`
}

// Failure is the error detail recorded on a failed JobOutcome.
type Failure struct {
	Kind    constants.FailureKind `json:"kind"`
	Message string                `json:"message"`
}

// JobOutcome is the terminal record of a Job, produced exactly once.
type JobOutcome struct {
	JobID      uuid.UUID           `json:"job_id"`
	BatchID    uuid.UUID           `json:"batch_id"`
	Seq        int                 `json:"seq"`
	Operation  constants.Operation `json:"operation"`
	Inputs     []string            `json:"inputs"`
	Output     string              `json:"output"`
	State      constants.JobState  `json:"state"`
	Artifact   string              `json:"artifact,omitempty"`
	Artifacts  []string            `json:"artifacts,omitempty"`
	Failure    *Failure            `json:"failure,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
	Duration   time.Duration       `json:"duration"`
}

// CancelledOutcome is the outcome of a Job that never got to run.
func CancelledOutcome(job Job, at time.Time) JobOutcome {
	return JobOutcome{
		JobID:      job.ID,
		BatchID:    job.BatchID,
		Seq:        job.Seq,
		Operation:  job.Operation,
		Inputs:     job.Inputs,
		Output:     job.Output,
		State:      constants.JobStateCancelled,
		FinishedAt: at,
	}
}
