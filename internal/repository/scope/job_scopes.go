package scope

import (
	"time"

	"ai-coursegen-be/internal/entity"

	"gorm.io/gorm"
)

// Query scopes shared by the job store recovery paths.

// OldestFirst keeps recovery sweeps fair: the job that has waited
// longest is redispatched first.
func OldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// ActiveWithExpiredLease selects jobs whose worker stopped renewing
// its claim before now.
func ActiveWithExpiredLease(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?",
			string(entity.JobStatusActive), now)
	}
}

// QueuedBefore selects queued jobs old enough that their wakeup should
// long have been consumed.
func QueuedBefore(cutoff time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND created_at < ?",
			string(entity.JobStatusQueued), cutoff)
	}
}
