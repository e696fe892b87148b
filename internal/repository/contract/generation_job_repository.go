package contract

import (
	"context"
	"encoding/json"
	"time"

	"ai-coursegen-be/internal/entity"

	"github.com/google/uuid"
)

// GenerationJobRepository is the durable Job Store. Status transitions
// are optimistic: every mutation is conditional on the expected current
// status, so a concurrent worker that lost the race sees a no-op.
type GenerationJobRepository interface {
	Create(ctx context.Context, job *entity.GenerationJob) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error)

	// Claim transitions queued -> active and acquires a lease in one
	// atomic step. Returns false when the job was already claimed,
	// cancelled, or finished.
	Claim(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error)

	// UpdateProgress is best-effort: it only applies while the job is
	// active and never moves progress backwards.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error

	// MarkCompleted transitions active -> completed with the result.
	MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) (bool, error)

	// MarkFailed transitions active -> failed with the structured error.
	MarkFailed(ctx context.Context, id uuid.UUID, detail entity.JobErrorDetail) (bool, error)

	// CancelQueued transitions queued -> cancelled before dispatch.
	CancelQueued(ctx context.Context, id uuid.UUID) (bool, error)

	// RequestCancel sets the cooperative cancel flag on an active job.
	// The worker honors it at the next stage boundary.
	RequestCancel(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkCancelled transitions active -> cancelled once the worker has
	// acknowledged a cancel request.
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)

	// Release transitions active -> queued and clears the lease. Used
	// when a retryable failure leaves attempts remaining.
	Release(ctx context.Context, id uuid.UUID) (bool, error)

	// RequeueExpired returns active jobs whose lease has expired to the
	// queued state and reports them for re-dispatch.
	RequeueExpired(ctx context.Context, now time.Time) ([]*entity.GenerationJob, error)

	// FindQueuedBefore reports queued jobs created before cutoff, oldest
	// first. These are jobs whose wakeup was likely lost at publish time.
	FindQueuedBefore(ctx context.Context, cutoff time.Time) ([]*entity.GenerationJob, error)
}
