package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Queue is the submission side of the pipeline: it persists a job and
// dispatches its id on the kind's topic. The durable row is the source
// of truth; the message is only a wakeup.
type Queue struct {
	jobRepo   contract.GenerationJobRepository
	publisher message.Publisher
	log       logger.ILogger
}

func NewQueue(jobRepo contract.GenerationJobRepository, publisher message.Publisher, log logger.ILogger) *Queue {
	return &Queue{
		jobRepo:   jobRepo,
		publisher: publisher,
		log:       log,
	}
}

// Submit validates, persists the queued job, then publishes. A publish
// failure is not fatal: the requeue loop re-dispatches orphaned rows.
func (q *Queue) Submit(ctx context.Context, kind entity.JobKind, payload json.RawMessage) (*entity.GenerationJob, error) {
	if !kind.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown job kind %q", kind))
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, apperrors.NewValidation("payload must be a valid JSON document")
	}

	job := &entity.GenerationJob{
		Id:      uuid.New(),
		Kind:    kind,
		Payload: payload,
		Status:  entity.JobStatusQueued,
	}
	if err := q.jobRepo.Create(ctx, job); err != nil {
		return nil, apperrors.NewInternal("failed to persist job", err)
	}

	if err := q.dispatch(job); err != nil {
		q.log.Warn("jobs", "dispatch failed, requeue loop will pick the job up", map[string]interface{}{
			"job_id": job.Id.String(),
			"error":  err.Error(),
		})
	}

	return job, nil
}

// GetStatus returns the current snapshot of a job.
func (q *Queue) GetStatus(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error) {
	job, err := q.jobRepo.FindOne(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternal("failed to load job", err)
	}
	if job == nil {
		return nil, apperrors.NewNotFound(fmt.Sprintf("job %s", id))
	}
	return job, nil
}

// Cancel removes a queued job before dispatch. For an active job it
// sets the cooperative cancel flag instead: the worker stops at its
// next stage boundary, never mid-call. Terminal jobs are immutable.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	ok, err := q.jobRepo.CancelQueued(ctx, id)
	if err != nil {
		return apperrors.NewInternal("failed to cancel job", err)
	}
	if ok {
		return nil
	}

	ok, err = q.jobRepo.RequestCancel(ctx, id)
	if err != nil {
		return apperrors.NewInternal("failed to cancel job", err)
	}
	if ok {
		return nil
	}

	job, err := q.jobRepo.FindOne(ctx, id)
	if err != nil {
		return apperrors.NewInternal("failed to load job", err)
	}
	if job == nil {
		return apperrors.NewNotFound(fmt.Sprintf("job %s", id))
	}
	return apperrors.NewValidation(fmt.Sprintf("job is already %s", job.Status))
}

// Redispatch publishes a wakeup for an already-persisted queued job.
func (q *Queue) Redispatch(job *entity.GenerationJob) error {
	return q.dispatch(job)
}

func (q *Queue) dispatch(job *entity.GenerationJob) error {
	msg := message.NewMessage(watermill.NewUUID(), []byte(job.Id.String()))
	return q.publisher.Publish(TopicForKind(job.Kind), msg)
}
