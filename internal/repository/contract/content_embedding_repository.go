package contract

import (
	"context"

	"ai-coursegen-be/internal/entity"

	"github.com/google/uuid"
)

// EmbeddingFilters are the mandatory exact-match predicates applied to
// vector search. Empty string / nil fields are not filtered on.
type EmbeddingFilters struct {
	Subject   string
	Class     string
	Board     string
	TeacherId *uuid.UUID
	TopicId   *uuid.UUID
}

// ScoredContentEmbedding pairs an index row with its cosine similarity
// to the query vector.
type ScoredContentEmbedding struct {
	Embedding  *entity.ContentEmbedding
	Similarity float64
}

// ContentEmbeddingRepository is the Vector Index boundary.
type ContentEmbeddingRepository interface {
	// Upsert replaces the row for (OwnerId, OwnerType). A vector whose
	// dimension does not match the configured index dimension is
	// rejected with EmbeddingDimensionError and the index is unchanged.
	Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error

	// SearchSimilarWithScore returns up to topK rows matching every set
	// filter, ordered by descending similarity, at or above threshold.
	SearchSimilarWithScore(ctx context.Context, vector []float32, topK int, filters EmbeddingFilters, threshold float64) ([]*ScoredContentEmbedding, error)

	DeleteByOwner(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error
}
