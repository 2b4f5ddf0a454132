package constants

// JobState is the lifecycle state of a Job. Stored as-is in the history store.
type JobState string

const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// Terminal reports whether no further transitions can happen from s.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// BatchState is the aggregate state of a Batch in the history store.
type BatchState string

const (
	BatchStateRunning   BatchState = "RUNNING"
	BatchStateCompleted BatchState = "COMPLETED"
	BatchStateCancelled BatchState = "CANCELLED"
)

// EventType names a lifecycle event emitted for a Job or a Batch.
type EventType string

const (
	EventQueued         EventType = "queued"
	EventStarted        EventType = "started"
	EventProgress       EventType = "progress"
	EventSucceeded      EventType = "succeeded"
	EventFailed         EventType = "failed"
	EventCancelled      EventType = "cancelled"
	EventBatchCompleted EventType = "batch_completed"
)

// Terminal reports whether the event ends its Job.
func (t EventType) Terminal() bool {
	return t == EventSucceeded || t == EventFailed || t == EventCancelled
}

// EventForState maps a terminal state to its event type.
func EventForState(s JobState) EventType {
	switch s {
	case JobStateSucceeded:
		return EventSucceeded
	case JobStateFailed:
		return EventFailed
	case JobStateCancelled:
		return EventCancelled
	case JobStateRunning:
		return EventStarted
	}
	return EventQueued
}
