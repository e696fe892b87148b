package contract

import (
	"context"

	"ai-coursegen-be/internal/entity"

	"github.com/google/uuid"
)

type TopicRepository interface {
	Create(ctx context.Context, topic *entity.Topic) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.Topic, error)
	// SaveEmbeddingRef persists the serialized vector copy and clears
	// (or sets) the pending flag on the owning topic.
	SaveEmbeddingRef(ctx context.Context, id uuid.UUID, vector []float32, pending bool) error
}
