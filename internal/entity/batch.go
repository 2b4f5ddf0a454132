package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
)

// BatchSpec is what a caller submits. Concurrency 0 selects the scheduler default.
type BatchSpec struct {
	Label       string    `json:"label,omitempty" validate:"max=200"`
	Concurrency int       `json:"concurrency,omitempty" validate:"gte=0"`
	Jobs        []JobSpec `json:"jobs" validate:"required,min=1,dive"`
}

// BatchHandle identifies a submitted batch and its jobs in submission order.
type BatchHandle struct {
	ID     uuid.UUID   `json:"batch_id"`
	JobIDs []uuid.UUID `json:"job_ids"`
}

// BatchRecord is the persisted summary of a batch.
type BatchRecord struct {
	ID          uuid.UUID            `json:"id"`
	Label       string               `json:"label"`
	Concurrency int                  `json:"concurrency"`
	Total       int                  `json:"total"`
	State       constants.BatchState `json:"state"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	Cancelled   int                  `json:"cancelled"`
	CreatedAt   time.Time            `json:"created_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}
