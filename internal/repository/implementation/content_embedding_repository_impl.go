package implementation

import (
	"context"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/mapper"
	"ai-coursegen-be/internal/model"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ContentEmbeddingRepositoryImpl struct {
	db        *gorm.DB
	mapper    *mapper.ContentEmbeddingMapper
	dimension int
}

func NewContentEmbeddingRepository(db *gorm.DB, dimension int) contract.ContentEmbeddingRepository {
	return &ContentEmbeddingRepositoryImpl{
		db:        db,
		mapper:    mapper.NewContentEmbeddingMapper(),
		dimension: dimension,
	}
}

func (r *ContentEmbeddingRepositoryImpl) Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error {
	// Dimension check happens BEFORE any write so a mismatch can never
	// leave the index partially updated.
	if len(embedding.EmbeddingValue) != r.dimension {
		return apperrors.NewEmbeddingDimension(len(embedding.EmbeddingValue), r.dimension)
	}

	m := r.mapper.ToModel(embedding)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND owner_type = ?", m.OwnerId, m.OwnerType).
			Delete(&model.ContentEmbedding{}).Error; err != nil {
			return err
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		*embedding = *r.mapper.ToEntity(m)
		return nil
	})
}

func (r *ContentEmbeddingRepositoryImpl) SearchSimilarWithScore(
	ctx context.Context,
	vector []float32,
	topK int,
	filters contract.EmbeddingFilters,
	threshold float64,
) ([]*contract.ScoredContentEmbedding, error) {
	if len(vector) != r.dimension {
		return nil, apperrors.NewEmbeddingDimension(len(vector), r.dimension)
	}
	if topK <= 0 {
		topK = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) is the similarity.
	type result struct {
		model.ContentEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	query := r.db.WithContext(ctx).
		Table("content_embeddings").
		Select("content_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold)

	// Mandatory exact-match predicates: a candidate failing any set
	// filter is excluded regardless of similarity.
	if filters.Subject != "" {
		query = query.Where("subject = ?", filters.Subject)
	}
	if filters.Class != "" {
		query = query.Where("class = ?", filters.Class)
	}
	if filters.Board != "" {
		query = query.Where("board = ?", filters.Board)
	}
	if filters.TeacherId != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherId)
	}
	if filters.TopicId != nil {
		query = query.Where("topic_id = ?", *filters.TopicId)
	}

	err := query.Order("similarity DESC").Limit(topK).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredContentEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredContentEmbedding{
			Embedding:  r.mapper.ToEntity(&res.ContentEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *ContentEmbeddingRepositoryImpl) DeleteByOwner(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_type = ?", ownerId, string(ownerType)).
		Delete(&model.ContentEmbedding{}).Error
}
