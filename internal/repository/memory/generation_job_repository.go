package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"

	"github.com/google/uuid"
)

// GenerationJobRepository is a map-backed job store used by tests and
// the local simulator. Transitions follow the same conditional rules as
// the SQL implementation.
type GenerationJobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.GenerationJob
}

func NewGenerationJobRepository() contract.GenerationJobRepository {
	return &GenerationJobRepository{
		jobs: make(map[uuid.UUID]*entity.GenerationJob),
	}
}

func (r *GenerationJobRepository) Create(ctx context.Context, job *entity.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.Id == uuid.Nil {
		job.Id = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	clone := *job
	r.jobs[job.Id] = &clone
	return nil
}

func (r *GenerationJobRepository) FindOne(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (r *GenerationJobRepository) Claim(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusQueued {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusActive
	job.StartedAt = &now
	job.LeaseExpiresAt = &leaseUntil
	job.Attempts++
	return true, nil
}

func (r *GenerationJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive || job.Progress >= progress {
		return nil
	}
	job.Progress = progress
	return nil
}

func (r *GenerationJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusCompleted
	job.Progress = 100
	job.Result = result
	job.FinishedAt = &now
	return true, nil
}

func (r *GenerationJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail entity.JobErrorDetail) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusFailed
	job.ErrorDetail = &detail
	job.FinishedAt = &now
	return true, nil
}

func (r *GenerationJobRepository) CancelQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusQueued {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusCancelled
	job.FinishedAt = &now
	return true, nil
}

func (r *GenerationJobRepository) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive {
		return false, nil
	}
	job.CancelRequested = true
	return true, nil
}

func (r *GenerationJobRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusCancelled
	job.LeaseExpiresAt = nil
	job.FinishedAt = &now
	return true, nil
}

func (r *GenerationJobRepository) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != entity.JobStatusActive {
		return false, nil
	}
	job.Status = entity.JobStatusQueued
	job.LeaseExpiresAt = nil
	job.StartedAt = nil
	return true, nil
}

func (r *GenerationJobRepository) FindQueuedBefore(ctx context.Context, cutoff time.Time) ([]*entity.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*entity.GenerationJob
	for _, job := range r.jobs {
		if job.Status != entity.JobStatusQueued || !job.CreatedAt.Before(cutoff) {
			continue
		}
		clone := *job
		stale = append(stale, &clone)
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	return stale, nil
}

func (r *GenerationJobRepository) RequeueExpired(ctx context.Context, now time.Time) ([]*entity.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var requeued []*entity.GenerationJob
	for _, job := range r.jobs {
		if job.Status != entity.JobStatusActive || job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.Before(now) {
			continue
		}
		job.Status = entity.JobStatusQueued
		job.LeaseExpiresAt = nil
		job.StartedAt = nil
		clone := *job
		requeued = append(requeued, &clone)
	}
	return requeued, nil
}
