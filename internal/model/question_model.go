package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Question struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TopicId          uuid.UUID      `gorm:"type:uuid;not null;index"`
	Text             string         `gorm:"type:text;not null"`
	Difficulty       string         `gorm:"type:varchar(16)"`
	Subject          string         `gorm:"type:varchar(128);index"`
	Class            string         `gorm:"type:varchar(32);index"`
	Board            string         `gorm:"type:varchar(64);index"`
	TeacherId        *uuid.UUID     `gorm:"type:uuid;index"`
	EmbeddingRef     datatypes.JSON `gorm:"type:jsonb"`
	EmbeddingPending bool           `gorm:"default:true;index"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        *time.Time     `gorm:"autoUpdateTime"`
}

func (Question) TableName() string {
	return "questions"
}
