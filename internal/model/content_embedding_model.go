package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ContentEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId        uuid.UUID       `gorm:"type:uuid;not null;index:idx_content_embeddings_owner"`
	OwnerType      string          `gorm:"type:varchar(16);not null;index:idx_content_embeddings_owner"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text uses 768 dimensions
	Subject        string          `gorm:"type:varchar(128);index"`
	Class          string          `gorm:"type:varchar(32);index"`
	Board          string          `gorm:"type:varchar(64);index"`
	TeacherId      *uuid.UUID      `gorm:"type:uuid;index"`
	TopicId        *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      *time.Time      `gorm:"autoUpdateTime"`
}

func (ContentEmbedding) TableName() string {
	return "content_embeddings"
}
