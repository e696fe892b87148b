package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/mapper"
	"ai-coursegen-be/internal/model"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/internal/repository/scope"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GenerationJobRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GenerationJobMapper
}

func NewGenerationJobRepository(db *gorm.DB) contract.GenerationJobRepository {
	return &GenerationJobRepositoryImpl{
		db:     db,
		mapper: mapper.NewGenerationJobMapper(),
	}
}

func (r *GenerationJobRepositoryImpl) Create(ctx context.Context, job *entity.GenerationJob) error {
	m := r.mapper.ToModel(job)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*job = *r.mapper.ToEntity(m)
	return nil
}

func (r *GenerationJobRepositoryImpl) FindOne(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error) {
	var m model.GenerationJob
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// Claim is the atomic lease acquisition: the WHERE clause on status
// guarantees no two workers can hold the same job.
func (r *GenerationJobRepositoryImpl) Claim(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusQueued)).
		Updates(map[string]interface{}{
			"status":           string(entity.JobStatusActive),
			"started_at":       now,
			"lease_expires_at": leaseUntil,
			"attempts":         gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	// Monotonic: never move backwards, only while active.
	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ? AND progress < ?", id, string(entity.JobStatusActive), progress).
		Update("progress", progress).Error
}

func (r *GenerationJobRepositoryImpl) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusActive)).
		Updates(map[string]interface{}{
			"status":      string(entity.JobStatusCompleted),
			"progress":    100,
			"result":      datatypes.JSON(result),
			"finished_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, detail entity.JobErrorDetail) (bool, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return false, apperrors.NewInternal("marshal job error detail", err)
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusActive)).
		Updates(map[string]interface{}{
			"status":       string(entity.JobStatusFailed),
			"error_detail": datatypes.JSON(raw),
			"finished_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) CancelQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusQueued)).
		Updates(map[string]interface{}{
			"status":      string(entity.JobStatusCancelled),
			"finished_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusActive)).
		Update("cancel_requested", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusActive)).
		Updates(map[string]interface{}{
			"status":           string(entity.JobStatusCancelled),
			"lease_expires_at": nil,
			"finished_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(entity.JobStatusActive)).
		Updates(map[string]interface{}{
			"status":           string(entity.JobStatusQueued),
			"lease_expires_at": nil,
			"started_at":       nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GenerationJobRepositoryImpl) RequeueExpired(ctx context.Context, now time.Time) ([]*entity.GenerationJob, error) {
	var expired []*model.GenerationJob
	err := r.db.WithContext(ctx).
		Scopes(scope.ActiveWithExpiredLease(now), scope.OldestFirst).
		Find(&expired).Error
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	var requeued []*entity.GenerationJob
	for _, m := range expired {
		res := r.db.WithContext(ctx).
			Model(&model.GenerationJob{}).
			Where("id = ? AND status = ? AND lease_expires_at < ?",
				m.Id, string(entity.JobStatusActive), now).
			Updates(map[string]interface{}{
				"status":           string(entity.JobStatusQueued),
				"lease_expires_at": nil,
				"started_at":       nil,
			})
		if res.Error != nil {
			return requeued, res.Error
		}
		if res.RowsAffected == 1 {
			requeued = append(requeued, r.mapper.ToEntity(m))
		}
	}
	return requeued, nil
}

func (r *GenerationJobRepositoryImpl) FindQueuedBefore(ctx context.Context, cutoff time.Time) ([]*entity.GenerationJob, error) {
	var stale []*model.GenerationJob
	err := r.db.WithContext(ctx).
		Scopes(scope.QueuedBefore(cutoff), scope.OldestFirst).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(stale), nil
}
