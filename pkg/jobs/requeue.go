package jobs

import (
	"context"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
)

// RequeueLoop periodically returns lease-expired jobs to the queue and
// re-dispatches them, and re-dispatches queued jobs whose wakeup was
// lost at publish time. This is the recovery path for crashed workers
// and failed publishes, and the reason delivery is at-least-once.
type RequeueLoop struct {
	jobRepo  contract.GenerationJobRepository
	queue    *Queue
	interval time.Duration
	log      logger.ILogger
}

func NewRequeueLoop(jobRepo contract.GenerationJobRepository, queue *Queue, interval time.Duration, log logger.ILogger) *RequeueLoop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RequeueLoop{
		jobRepo:  jobRepo,
		queue:    queue,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled.
func (l *RequeueLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Exposed so tests and the simulator can drive
// it without a ticker.
func (l *RequeueLoop) Sweep(ctx context.Context) {
	now := time.Now()

	requeued, err := l.jobRepo.RequeueExpired(ctx, now)
	if err != nil {
		l.log.Error("jobs", "requeue sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, job := range requeued {
		l.log.Info("jobs", "requeued expired lease", map[string]interface{}{
			"job_id":   job.Id.String(),
			"kind":     string(job.Kind),
			"attempts": job.Attempts,
		})
		l.redispatch(job)
	}

	// Queued rows older than one interval have either lost their wakeup
	// or are about to be claimed; a duplicate wakeup is a no-op either
	// way, the claim is atomic.
	stale, err := l.jobRepo.FindQueuedBefore(ctx, now.Add(-l.interval))
	if err != nil {
		l.log.Error("jobs", "stale queued sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, job := range stale {
		l.log.Info("jobs", "redispatching stale queued job", map[string]interface{}{
			"job_id": job.Id.String(),
			"kind":   string(job.Kind),
		})
		l.redispatch(job)
	}
}

func (l *RequeueLoop) redispatch(job *entity.GenerationJob) {
	if err := l.queue.Redispatch(job); err != nil {
		l.log.Warn("jobs", "redispatch failed, next sweep will retry", map[string]interface{}{
			"job_id": job.Id.String(), "error": err.Error(),
		})
	}
}
