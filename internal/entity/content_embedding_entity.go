package entity

import (
	"time"

	"github.com/google/uuid"
)

type OwnerType string

const (
	OwnerTypeTopic    OwnerType = "topic"
	OwnerTypeQuestion OwnerType = "question"
)

func (t OwnerType) Valid() bool {
	return t == OwnerTypeTopic || t == OwnerTypeQuestion
}

// ContentEmbedding is one row in the vector index. The filter columns
// (subject/class/board/teacher/topic) are denormalized from the owning
// entity so search can apply mandatory exact-match predicates in SQL.
type ContentEmbedding struct {
	Id             uuid.UUID
	OwnerId        uuid.UUID
	OwnerType      OwnerType
	Document       string
	EmbeddingValue []float32
	Subject        string
	Class          string
	Board          string
	TeacherId      *uuid.UUID
	TopicId        *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
