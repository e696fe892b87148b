package service

import (
	"context"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/serverutils"
	"ai-coursegen-be/pkg/jobs"

	"github.com/google/uuid"
)

type IGenerationService interface {
	Submit(ctx context.Context, req *dto.SubmitGenerationRequest) (*dto.SubmitGenerationResponse, error)
	Status(ctx context.Context, id uuid.UUID) (*dto.GenerationStatusResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type generationService struct {
	queue *jobs.Queue
}

func NewGenerationService(queue *jobs.Queue) IGenerationService {
	return &generationService{queue: queue}
}

func (s *generationService) Submit(ctx context.Context, req *dto.SubmitGenerationRequest) (*dto.SubmitGenerationResponse, error) {
	kind := entity.JobKind(req.Kind)
	if err := validatePayload(kind, req.Payload); err != nil {
		return nil, err
	}

	job, err := s.queue.Submit(ctx, kind, req.Payload)
	if err != nil {
		return nil, err
	}

	return &dto.SubmitGenerationResponse{
		Id:     job.Id,
		Status: string(job.Status),
	}, nil
}

func (s *generationService) Status(ctx context.Context, id uuid.UUID) (*dto.GenerationStatusResponse, error) {
	job, err := s.queue.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &dto.GenerationStatusResponse{
		Id:         job.Id,
		Kind:       string(job.Kind),
		Status:     string(job.Status),
		Progress:   job.Progress,
		Result:     job.Result,
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorDetail != nil {
		res.ErrorDetail = &dto.JobErrorBody{
			Code:    job.ErrorDetail.Code,
			Message: job.ErrorDetail.Message,
		}
	}
	return res, nil
}

func (s *generationService) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.queue.Cancel(ctx, id)
}

// validatePayload applies kind-specific structural validation before
// the job is accepted, so a bad payload fails the submission, never the
// worker.
func validatePayload(kind entity.JobKind, payload []byte) error {
	switch kind {
	case entity.JobKindSyllabusGeneration:
		var p dto.SyllabusGenerationPayload
		return decodeAndValidate(payload, &p)
	case entity.JobKindQuestionsBatch:
		var p dto.QuestionsBatchPayload
		return decodeAndValidate(payload, &p)
	case entity.JobKindContentEnhancement:
		var p dto.ContentEnhancementPayload
		return decodeAndValidate(payload, &p)
	}
	// Unknown kinds are rejected by the queue itself.
	return nil
}

func decodeAndValidate(payload []byte, target interface{}) error {
	if err := decodePayload(payload, target); err != nil {
		return err
	}
	return serverutils.ValidateRequest(target)
}
