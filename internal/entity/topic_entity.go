package entity

import (
	"time"

	"github.com/google/uuid"
)

type Topic struct {
	Id      uuid.UUID
	Name    string
	Content string
	Subject string
	Class   string
	Board   string
	// TeacherId scopes retrieval; nil means board-level shared content.
	TeacherId *uuid.UUID
	// EmbeddingRef is the serialized copy of the vector stored in the
	// index, kept on the owning entity for audit.
	EmbeddingRef []float32
	// EmbeddingPending marks that the index upsert has not succeeded
	// yet; a pending topic is excluded from retrieval until a sync
	// clears the flag.
	EmbeddingPending bool
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
