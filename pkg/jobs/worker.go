package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// EventSink receives job lifecycle events. Nil-safe: a pool without a
// sink simply emits nothing.
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

// WorkerPool runs a fixed number of workers per job kind. Each worker
// claims jobs through the repository, so a duplicate wakeup for an
// already-claimed job is a harmless no-op.
type WorkerPool struct {
	jobRepo        contract.GenerationJobRepository
	subscriber     message.Subscriber
	queue          *Queue
	registry       *Registry
	workersPerKind int
	leaseTimeout   time.Duration
	maxAttempts    int
	sink           EventSink
	log            logger.ILogger
	wg             sync.WaitGroup
}

func NewWorkerPool(
	jobRepo contract.GenerationJobRepository,
	subscriber message.Subscriber,
	queue *Queue,
	registry *Registry,
	workersPerKind int,
	leaseTimeout time.Duration,
	maxAttempts int,
	sink EventSink,
	log logger.ILogger,
) *WorkerPool {
	if workersPerKind <= 0 {
		workersPerKind = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &WorkerPool{
		jobRepo:        jobRepo,
		subscriber:     subscriber,
		queue:          queue,
		registry:       registry,
		workersPerKind: workersPerKind,
		leaseTimeout:   leaseTimeout,
		maxAttempts:    maxAttempts,
		sink:           sink,
		log:            log,
	}
}

// Run subscribes every registered kind and starts its workers. It
// returns immediately; workers stop when ctx is cancelled.
func (p *WorkerPool) Run(ctx context.Context) error {
	for _, kind := range p.registry.Kinds() {
		messages, err := p.subscriber.Subscribe(ctx, TopicForKind(kind))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", TopicForKind(kind), err)
		}
		for i := 0; i < p.workersPerKind; i++ {
			p.wg.Add(1)
			go p.worker(ctx, messages)
		}
	}
	return nil
}

// Wait blocks until all workers have drained after ctx cancellation.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, messages <-chan *message.Message) {
	defer p.wg.Done()
	for msg := range messages {
		p.process(ctx, msg)
		// The durable row, not the message, carries delivery state.
		msg.Ack()
	}
}

func (p *WorkerPool) process(ctx context.Context, msg *message.Message) {
	jobId, err := uuid.Parse(string(msg.Payload))
	if err != nil {
		p.log.Error("jobs", "discarding message with invalid job id", map[string]interface{}{
			"payload": string(msg.Payload),
		})
		return
	}

	leaseUntil := time.Now().Add(p.leaseTimeout)
	claimed, err := p.jobRepo.Claim(ctx, jobId, leaseUntil)
	if err != nil {
		p.log.Error("jobs", "claim failed", map[string]interface{}{
			"job_id": jobId.String(), "error": err.Error(),
		})
		return
	}
	if !claimed {
		// Already claimed, cancelled, or finished.
		return
	}

	job, err := p.jobRepo.FindOne(ctx, jobId)
	if err != nil || job == nil {
		p.log.Error("jobs", "claimed job vanished", map[string]interface{}{"job_id": jobId.String()})
		return
	}

	// A cancel requested on an earlier attempt survives the requeue.
	if job.CancelRequested {
		p.cancel(ctx, job)
		return
	}

	handler, ok := p.registry.Get(job.Kind)
	if !ok {
		p.fail(ctx, job, entity.JobErrorDetail{
			Code:    string(apperrors.CodeInternal),
			Message: fmt.Sprintf("no handler registered for kind %q", job.Kind),
		})
		return
	}

	result, execErr := p.execute(ctx, handler, job)
	if execErr != nil && errors.Is(execErr, context.Canceled) {
		current, ferr := p.jobRepo.FindOne(ctx, job.Id)
		if ferr == nil && current != nil && current.CancelRequested {
			p.cancel(ctx, job)
			return
		}
		// Pool shutdown: leave the row active, the lease sweep recovers it.
		return
	}
	if execErr == nil {
		ok, err := p.jobRepo.MarkCompleted(ctx, job.Id, result)
		if err != nil {
			p.log.Error("jobs", "completion write failed", map[string]interface{}{
				"job_id": job.Id.String(), "error": err.Error(),
			})
			return
		}
		if ok {
			p.emit(ctx, events.NewJobCompleted(job.Id.String(), string(job.Kind)))
		}
		return
	}

	if apperrors.IsRetryable(execErr) && job.Attempts < p.maxAttempts {
		released, err := p.jobRepo.Release(ctx, job.Id)
		if err == nil && released {
			p.emit(ctx, events.NewJobRequeued(job.Id.String(), string(job.Kind), job.Attempts))
			if p.queue != nil {
				if err := p.queue.Redispatch(job); err != nil {
					p.log.Warn("jobs", "redispatch failed, requeue loop will recover", map[string]interface{}{
						"job_id": job.Id.String(), "error": err.Error(),
					})
				}
			}
			return
		}
	}

	p.fail(ctx, job, entity.JobErrorDetail{
		Code:    string(apperrors.CodeOf(execErr)),
		Message: execErr.Error(),
	})
}

// execute runs the handler under the lease deadline with panic
// isolation: a panicking handler fails its own job, never the worker.
// A watcher polls the cancel flag and cuts the handler context at the
// next stage boundary; the in-flight call itself is never interrupted.
func (p *WorkerPool) execute(ctx context.Context, handler Handler, job *entity.GenerationJob) (result []byte, err error) {
	execCtx, cancel := context.WithTimeout(ctx, p.leaseTimeout)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go p.watchCancel(execCtx, cancel, job.Id, watchDone)

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternal(fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()

	report := func(progress int) {
		if progress < 0 || progress > 100 {
			return
		}
		if err := p.jobRepo.UpdateProgress(ctx, job.Id, progress); err != nil {
			p.log.Warn("jobs", "progress write failed", map[string]interface{}{
				"job_id": job.Id.String(), "error": err.Error(),
			})
		}
	}

	result, err = handler.Execute(execCtx, job, report)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewTimeout("job exceeded its lease", err)
	}
	return result, err
}

// watchCancel polls the cancel flag while a handler runs and cuts its
// context once set. Polling keeps the flag visible across processes
// sharing the job store.
func (p *WorkerPool) watchCancel(ctx context.Context, cancel context.CancelFunc, jobId uuid.UUID, done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := p.jobRepo.FindOne(ctx, jobId)
			if err == nil && job != nil && job.CancelRequested {
				cancel()
				return
			}
		}
	}
}

func (p *WorkerPool) cancel(ctx context.Context, job *entity.GenerationJob) {
	ok, err := p.jobRepo.MarkCancelled(ctx, job.Id)
	if err != nil {
		p.log.Error("jobs", "cancellation write failed", map[string]interface{}{
			"job_id": job.Id.String(), "error": err.Error(),
		})
		return
	}
	if ok {
		p.emit(ctx, events.NewJobCancelled(job.Id.String(), string(job.Kind)))
	}
}

func (p *WorkerPool) fail(ctx context.Context, job *entity.GenerationJob, detail entity.JobErrorDetail) {
	ok, err := p.jobRepo.MarkFailed(ctx, job.Id, detail)
	if err != nil {
		p.log.Error("jobs", "failure write failed", map[string]interface{}{
			"job_id": job.Id.String(), "error": err.Error(),
		})
		return
	}
	if ok {
		p.emit(ctx, events.NewJobFailed(job.Id.String(), string(job.Kind), detail.Code, detail.Message))
	}
}

func (p *WorkerPool) emit(ctx context.Context, event events.Event) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, event); err != nil {
		p.log.Warn("jobs", "event publish failed", map[string]interface{}{
			"event": event.EventType(), "error": err.Error(),
		})
	}
}
