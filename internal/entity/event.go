package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
)

// Event is one entry of a batch's lifecycle log. Seq is dense per batch
// starting at 1. JobID is zero for batch-level events.
type Event struct {
	Seq      int64               `json:"seq"`
	BatchID  uuid.UUID           `json:"batch_id"`
	JobID    uuid.UUID           `json:"job_id,omitempty"`
	Type     constants.EventType `json:"type"`
	Fraction float64             `json:"fraction,omitempty"`
	Outcome  *JobOutcome         `json:"outcome,omitempty"`
	At       time.Time           `json:"at"`
}

// JobView is the reporter's current view of one Job.
type JobView struct {
	ID        uuid.UUID           `json:"id"`
	Seq       int                 `json:"seq"`
	Operation constants.Operation `json:"operation"`
	State     constants.JobState  `json:"state"`
	Fraction  float64             `json:"fraction"`
	Outcome   *JobOutcome         `json:"outcome,omitempty"`
}

// Snapshot is a consistent copy of a batch's state.
// Succeeded+Failed+Cancelled+Pending == Total at all times, and
// Pending == Queued+Running.
type Snapshot struct {
	BatchID         uuid.UUID  `json:"batch_id"`
	Label           string     `json:"label,omitempty"`
	Concurrency     int        `json:"concurrency"`
	Total           int        `json:"total"`
	Queued          int        `json:"queued"`
	Running         int        `json:"running"`
	Pending         int        `json:"pending"`
	Succeeded       int        `json:"succeeded"`
	Failed          int        `json:"failed"`
	Cancelled       int        `json:"cancelled"`
	CancelRequested bool       `json:"cancel_requested"`
	Done            bool       `json:"done"`
	Jobs            []JobView  `json:"jobs"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Failures returns the outcomes of failed jobs in submission order.
func (s Snapshot) Failures() []JobOutcome {
	var out []JobOutcome
	for _, j := range s.Jobs {
		if j.State == constants.JobStateFailed && j.Outcome != nil {
			out = append(out, *j.Outcome)
		}
	}
	return out
}

// Outcomes returns every recorded outcome in submission order.
func (s Snapshot) Outcomes() []JobOutcome {
	out := make([]JobOutcome, 0, len(s.Jobs))
	for _, j := range s.Jobs {
		if j.Outcome != nil {
			out = append(out, *j.Outcome)
		}
	}
	return out
}
