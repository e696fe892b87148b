package mapper

import (
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ContentEmbeddingMapper struct{}

func NewContentEmbeddingMapper() *ContentEmbeddingMapper {
	return &ContentEmbeddingMapper{}
}

func (m *ContentEmbeddingMapper) ToEntity(e *model.ContentEmbedding) *entity.ContentEmbedding {
	if e == nil {
		return nil
	}

	return &entity.ContentEmbedding{
		Id:             e.Id,
		OwnerId:        e.OwnerId,
		OwnerType:      entity.OwnerType(e.OwnerType),
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		Subject:        e.Subject,
		Class:          e.Class,
		Board:          e.Board,
		TeacherId:      e.TeacherId,
		TopicId:        e.TopicId,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (m *ContentEmbeddingMapper) ToModel(e *entity.ContentEmbedding) *model.ContentEmbedding {
	if e == nil {
		return nil
	}

	return &model.ContentEmbedding{
		Id:             e.Id,
		OwnerId:        e.OwnerId,
		OwnerType:      string(e.OwnerType),
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		Subject:        e.Subject,
		Class:          e.Class,
		Board:          e.Board,
		TeacherId:      e.TeacherId,
		TopicId:        e.TopicId,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (m *ContentEmbeddingMapper) ToEntities(embeddings []*model.ContentEmbedding) []*entity.ContentEmbedding {
	entities := make([]*entity.ContentEmbedding, len(embeddings))
	for i, e := range embeddings {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
