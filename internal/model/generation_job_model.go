package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GenerationJob struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Kind            string         `gorm:"type:varchar(64);not null;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	Status          string         `gorm:"type:varchar(16);not null;index"`
	Progress        int            `gorm:"default:0"`
	Result          datatypes.JSON `gorm:"type:jsonb"`
	CancelRequested bool           `gorm:"default:false"`
	ErrorDetail     datatypes.JSON `gorm:"type:jsonb"`
	Attempts        int            `gorm:"default:0"`
	LeaseExpiresAt  *time.Time     `gorm:"index"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index"`
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}
