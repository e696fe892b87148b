package contract

import (
	"context"

	"ai-coursegen-be/internal/entity"

	"github.com/google/uuid"
)

type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	CreateBulk(ctx context.Context, questions []*entity.Question) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.Question, error)
	SaveEmbeddingRef(ctx context.Context, id uuid.UUID, vector []float32, pending bool) error
}
