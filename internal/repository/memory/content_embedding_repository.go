package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/google/uuid"
)

type ownerKey struct {
	id        uuid.UUID
	ownerType entity.OwnerType
}

// ContentEmbeddingRepository keeps the vector index in a map and runs
// cosine similarity in Go. Used by tests and the local simulator.
type ContentEmbeddingRepository struct {
	mu        sync.RWMutex
	rows      map[ownerKey]*entity.ContentEmbedding
	dimension int
}

func NewContentEmbeddingRepository(dimension int) contract.ContentEmbeddingRepository {
	return &ContentEmbeddingRepository{
		rows:      make(map[ownerKey]*entity.ContentEmbedding),
		dimension: dimension,
	}
}

func (r *ContentEmbeddingRepository) Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error {
	if len(embedding.EmbeddingValue) != r.dimension {
		return apperrors.NewEmbeddingDimension(len(embedding.EmbeddingValue), r.dimension)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if embedding.Id == uuid.Nil {
		embedding.Id = uuid.New()
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = time.Now()
	}
	clone := *embedding
	r.rows[ownerKey{id: embedding.OwnerId, ownerType: embedding.OwnerType}] = &clone
	return nil
}

func (r *ContentEmbeddingRepository) SearchSimilarWithScore(
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

	r.mu.RLock()
	defer r.mu.RUnlock()

	var scored []*contract.ScoredContentEmbedding
	for _, row := range r.rows {
		if !matchesFilters(row, filters) {
			continue
		}
		sim := cosineSimilarity(vector, row.EmbeddingValue)
		if sim < threshold {
			continue
		}
		clone := *row
		scored = append(scored, &contract.ScoredContentEmbedding{
			Embedding:  &clone,
			Similarity: sim,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (r *ContentEmbeddingRepository) DeleteByOwner(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows, ownerKey{id: ownerId, ownerType: ownerType})
	return nil
}

func matchesFilters(row *entity.ContentEmbedding, filters contract.EmbeddingFilters) bool {
	if filters.Subject != "" && row.Subject != filters.Subject {
		return false
	}
	if filters.Class != "" && row.Class != filters.Class {
		return false
	}
	if filters.Board != "" && row.Board != filters.Board {
		return false
	}
	if filters.TeacherId != nil && (row.TeacherId == nil || *row.TeacherId != *filters.TeacherId) {
		return false
	}
	if filters.TopicId != nil && (row.TopicId == nil || *row.TopicId != *filters.TopicId) {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
