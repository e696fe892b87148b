package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Topic struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name             string         `gorm:"type:varchar(256);not null"`
	Content          string         `gorm:"type:text"`
	Subject          string         `gorm:"type:varchar(128);index"`
	Class            string         `gorm:"type:varchar(32);index"`
	Board            string         `gorm:"type:varchar(64);index"`
	TeacherId        *uuid.UUID     `gorm:"type:uuid;index"`
	EmbeddingRef     datatypes.JSON `gorm:"type:jsonb"` // serialized copy of the indexed vector
	EmbeddingPending bool           `gorm:"default:true;index"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        *time.Time     `gorm:"autoUpdateTime"`
}

func (Topic) TableName() string {
	return "topics"
}
