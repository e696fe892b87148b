package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobKindSyllabusGeneration JobKind = "syllabus_generation"
	JobKindQuestionsBatch     JobKind = "questions_batch"
	JobKindContentEnhancement JobKind = "content_enhancement"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobKindSyllabusGeneration, JobKindQuestionsBatch, JobKindContentEnhancement:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobErrorDetail is the structured failure recorded on a failed job and
// returned to polling clients. Never a raw stack trace.
type JobErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GenerationJob struct {
	Id       uuid.UUID
	Kind     JobKind
	Payload  json.RawMessage
	Status   JobStatus
	Progress int // 0-100, monotonic non-decreasing while active
	Result   json.RawMessage

	// CancelRequested is the cooperative cancel flag for active jobs.
	// Workers check it between pipeline stages; an in-flight model call
	// is never interrupted.
	CancelRequested bool

	ErrorDetail    *JobErrorDetail
	Attempts       int
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}
