package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SubmitGenerationRequest struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type SubmitGenerationResponse struct {
	Id     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type JobErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GenerationStatusResponse struct {
	Id          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorDetail *JobErrorBody   `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// SyllabusGenerationPayload drives the syllabus_generation kind.
type SyllabusGenerationPayload struct {
	Subject   string     `json:"subject" validate:"required"`
	Class     string     `json:"class" validate:"required"`
	Board     string     `json:"board" validate:"required"`
	TeacherId *uuid.UUID `json:"teacher_id,omitempty"`
	UnitCount int        `json:"unit_count,omitempty"`
}

// QuestionsBatchPayload drives the questions_batch kind.
type QuestionsBatchPayload struct {
	TopicId    uuid.UUID `json:"topic_id" validate:"required"`
	Count      int       `json:"count" validate:"required,min=1,max=50"`
	Difficulty string    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// ContentEnhancementPayload drives the content_enhancement kind.
type ContentEnhancementPayload struct {
	TopicId     uuid.UUID `json:"topic_id" validate:"required"`
	Instruction string    `json:"instruction" validate:"required"`
}
