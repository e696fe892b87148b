package events

import "time"

// Event defines the contract for all pipeline lifecycle events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "JOB_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation used when reconstructing
// events off the wire.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewJobCompleted announces that a generation job reached its terminal
// completed state.
func NewJobCompleted(jobId string, kind string) Event {
	return BaseEvent{
		Type: "JOB_COMPLETED",
		Data: map[string]interface{}{
			"job_id": jobId,
			"kind":   kind,
		},
		OccurredAt: time.Now(),
	}
}

// NewJobFailed announces a terminal failure with its classified code.
func NewJobFailed(jobId string, kind string, code string, message string) Event {
	return BaseEvent{
		Type: "JOB_FAILED",
		Data: map[string]interface{}{
			"job_id":  jobId,
			"kind":    kind,
			"code":    code,
			"message": message,
		},
		OccurredAt: time.Now(),
	}
}

// NewJobCancelled announces that a cancel request was honored, either
// before dispatch or at a worker stage boundary.
func NewJobCancelled(jobId string, kind string) Event {
	return BaseEvent{
		Type: "JOB_CANCELLED",
		Data: map[string]interface{}{
			"job_id": jobId,
			"kind":   kind,
		},
		OccurredAt: time.Now(),
	}
}

// NewJobRequeued announces that an expired lease returned a job to the
// queue for another attempt.
func NewJobRequeued(jobId string, kind string, attempts int) Event {
	return BaseEvent{
		Type: "JOB_REQUEUED",
		Data: map[string]interface{}{
			"job_id":   jobId,
			"kind":     kind,
			"attempts": attempts,
		},
		OccurredAt: time.Now(),
	}
}
