package mapper

import (
	"encoding/json"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/model"

	"gorm.io/datatypes"
)

type GenerationJobMapper struct{}

func NewGenerationJobMapper() *GenerationJobMapper {
	return &GenerationJobMapper{}
}

func (m *GenerationJobMapper) ToEntity(e *model.GenerationJob) *entity.GenerationJob {
	if e == nil {
		return nil
	}

	var errorDetail *entity.JobErrorDetail
	if len(e.ErrorDetail) > 0 {
		var d entity.JobErrorDetail
		if err := json.Unmarshal(e.ErrorDetail, &d); err == nil && d.Code != "" {
			errorDetail = &d
		}
	}

	return &entity.GenerationJob{
		Id:              e.Id,
		Kind:            entity.JobKind(e.Kind),
		Payload:         json.RawMessage(e.Payload),
		Status:          entity.JobStatus(e.Status),
		Progress:        e.Progress,
		Result:          json.RawMessage(e.Result),
		CancelRequested: e.CancelRequested,
		ErrorDetail:     errorDetail,
		Attempts:        e.Attempts,
		LeaseExpiresAt:  e.LeaseExpiresAt,
		CreatedAt:       e.CreatedAt,
		StartedAt:       e.StartedAt,
		FinishedAt:      e.FinishedAt,
	}
}

func (m *GenerationJobMapper) ToModel(e *entity.GenerationJob) *model.GenerationJob {
	if e == nil {
		return nil
	}

	var errorDetail datatypes.JSON
	if e.ErrorDetail != nil {
		if raw, err := json.Marshal(e.ErrorDetail); err == nil {
			errorDetail = datatypes.JSON(raw)
		}
	}

	return &model.GenerationJob{
		Id:              e.Id,
		Kind:            string(e.Kind),
		Payload:         datatypes.JSON(e.Payload),
		Status:          string(e.Status),
		Progress:        e.Progress,
		Result:          datatypes.JSON(e.Result),
		CancelRequested: e.CancelRequested,
		ErrorDetail:     errorDetail,
		Attempts:        e.Attempts,
		LeaseExpiresAt:  e.LeaseExpiresAt,
		CreatedAt:       e.CreatedAt,
		StartedAt:       e.StartedAt,
		FinishedAt:      e.FinishedAt,
	}
}

func (m *GenerationJobMapper) ToEntities(jobs []*model.GenerationJob) []*entity.GenerationJob {
	entities := make([]*entity.GenerationJob, len(jobs))
	for i, j := range jobs {
		entities[i] = m.ToEntity(j)
	}
	return entities
}
