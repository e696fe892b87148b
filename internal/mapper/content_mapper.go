package mapper

import (
	"encoding/json"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/model"

	"gorm.io/datatypes"
)

// Topic and Question share the same embedding-reference shape, so both
// mappers live here.

type TopicMapper struct{}

func NewTopicMapper() *TopicMapper {
	return &TopicMapper{}
}

func (m *TopicMapper) ToEntity(e *model.Topic) *entity.Topic {
	if e == nil {
		return nil
	}

	return &entity.Topic{
		Id:               e.Id,
		Name:             e.Name,
		Content:          e.Content,
		Subject:          e.Subject,
		Class:            e.Class,
		Board:            e.Board,
		TeacherId:        e.TeacherId,
		EmbeddingRef:     unmarshalVectorRef(e.EmbeddingRef),
		EmbeddingPending: e.EmbeddingPending,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (m *TopicMapper) ToModel(e *entity.Topic) *model.Topic {
	if e == nil {
		return nil
	}

	return &model.Topic{
		Id:               e.Id,
		Name:             e.Name,
		Content:          e.Content,
		Subject:          e.Subject,
		Class:            e.Class,
		Board:            e.Board,
		TeacherId:        e.TeacherId,
		EmbeddingRef:     marshalVectorRef(e.EmbeddingRef),
		EmbeddingPending: e.EmbeddingPending,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

type QuestionMapper struct{}

func NewQuestionMapper() *QuestionMapper {
	return &QuestionMapper{}
}

func (m *QuestionMapper) ToEntity(e *model.Question) *entity.Question {
	if e == nil {
		return nil
	}

	return &entity.Question{
		Id:               e.Id,
		TopicId:          e.TopicId,
		Text:             e.Text,
		Difficulty:       e.Difficulty,
		Subject:          e.Subject,
		Class:            e.Class,
		Board:            e.Board,
		TeacherId:        e.TeacherId,
		EmbeddingRef:     unmarshalVectorRef(e.EmbeddingRef),
		EmbeddingPending: e.EmbeddingPending,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (m *QuestionMapper) ToModel(e *entity.Question) *model.Question {
	if e == nil {
		return nil
	}

	return &model.Question{
		Id:               e.Id,
		TopicId:          e.TopicId,
		Text:             e.Text,
		Difficulty:       e.Difficulty,
		Subject:          e.Subject,
		Class:            e.Class,
		Board:            e.Board,
		TeacherId:        e.TeacherId,
		EmbeddingRef:     marshalVectorRef(e.EmbeddingRef),
		EmbeddingPending: e.EmbeddingPending,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func marshalVectorRef(vec []float32) datatypes.JSON {
	if len(vec) == 0 {
		return nil
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func unmarshalVectorRef(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil
	}
	return vec
}
