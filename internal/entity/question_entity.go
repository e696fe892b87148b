package entity

import (
	"time"

	"github.com/google/uuid"
)

type Question struct {
	Id               uuid.UUID
	TopicId          uuid.UUID
	Text             string
	Difficulty       string
	Subject          string
	Class            string
	Board            string
	TeacherId        *uuid.UUID
	EmbeddingRef     []float32
	EmbeddingPending bool
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
