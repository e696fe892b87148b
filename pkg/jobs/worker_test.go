package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/internal/repository/memory"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type funcHandler struct {
	kind entity.JobKind
	fn   func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error)
}

func (h *funcHandler) Kind() entity.JobKind { return h.kind }

func (h *funcHandler) Execute(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
	return h.fn(ctx, job, report)
}

type testHarness struct {
	repo  contract.GenerationJobRepository
	queue *Queue
	pool  *WorkerPool
}

func newHarness(t *testing.T, handlers ...Handler) *testHarness {
	t.Helper()

	repo := memory.NewGenerationJobRepository()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := NewQueue(repo, pubSub, nopLogger{})
	pool := NewWorkerPool(repo, pubSub, queue, NewRegistry(handlers...), 2, 5*time.Second, 3, nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, pool.Run(ctx))

	return &testHarness{repo: repo, queue: queue, pool: pool}
}

func waitForStatus(t *testing.T, repo contract.GenerationJobRepository, id uuid.UUID, want entity.JobStatus) *entity.GenerationJob {
	t.Helper()

	var job *entity.GenerationJob
	require.Eventually(t, func() bool {
		var err error
		job, err = repo.FindOne(context.Background(), id)
		return err == nil && job != nil && job.Status == want
	}, 3*time.Second, 10*time.Millisecond, "job never reached %s", want)
	return job
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			report(25)
			report(75)
			return json.RawMessage(`{"units":3}`), nil
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindSyllabusGeneration, json.RawMessage(`{"subject":"biology"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, job.Status)

	done := waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.JSONEq(t, `{"units":3}`, string(done.Result))
	assert.Equal(t, 1, done.Attempts)
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	h := newHarness(t)

	_, err := h.queue.Submit(context.Background(), entity.JobKind("weather_forecast"), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	h := newHarness(t)

	_, err := h.queue.Submit(context.Background(), entity.JobKindQuestionsBatch, json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestCancelActiveJobStopsAtStageBoundary(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindContentEnhancement,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			close(started)
			// A handler parks here the way the real ones park between
			// pipeline stages: by honoring its context.
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindContentEnhancement, json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)

	<-started
	require.NoError(t, h.queue.Cancel(context.Background(), job.Id))

	waitForStatus(t, h.repo, job.Id, entity.JobStatusCancelled)
}

func TestCancelTerminalJobIsRejected(t *testing.T) {
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindSyllabusGeneration, json.RawMessage(`{}`))
	require.NoError(t, err)
	waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)

	err = h.queue.Cancel(context.Background(), job.Id)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestCancelQueuedJob(t *testing.T) {
	// No handler registered for this kind, so the job stays queued.
	h := newHarness(t)

	job := &entity.GenerationJob{Kind: entity.JobKindSyllabusGeneration, Payload: json.RawMessage(`{}`), Status: entity.JobStatusQueued}
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.queue.Cancel(context.Background(), job.Id))

	got, err := h.repo.FindOne(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCancelled, got.Status)
}

func TestCancelUnknownJobIsNotFound(t *testing.T) {
	h := newHarness(t)

	err := h.queue.Cancel(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDuplicateWakeupsExecuteOnce(t *testing.T) {
	var executions int32
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			atomic.AddInt32(&executions, 1)
			time.Sleep(20 * time.Millisecond)
			return json.RawMessage(`{}`), nil
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindSyllabusGeneration, json.RawMessage(`{}`))
	require.NoError(t, err)

	// Simulate redundant deliveries of the same wakeup.
	for i := 0; i < 5; i++ {
		require.NoError(t, h.queue.Redispatch(job))
	}

	waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestRetryableFailureIsRetried(t *testing.T) {
	var attempts int32
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindQuestionsBatch,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, apperrors.NewTimeout("model timeout", errors.New("deadline"))
			}
			return json.RawMessage(`{"questions":5}`), nil
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindQuestionsBatch, json.RawMessage(`{"count":5}`))
	require.NoError(t, err)

	done := waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)
	assert.Equal(t, 2, done.Attempts)
}

func TestNonRetryableFailureIsTerminal(t *testing.T) {
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			return nil, apperrors.NewValidation("subject is required")
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindSyllabusGeneration, json.RawMessage(`{}`))
	require.NoError(t, err)

	failed := waitForStatus(t, h.repo, job.Id, entity.JobStatusFailed)
	require.NotNil(t, failed.ErrorDetail)
	assert.Equal(t, string(apperrors.CodeValidation), failed.ErrorDetail.Code)
	assert.Equal(t, 1, failed.Attempts)
}

func TestPanickingHandlerFailsItsJob(t *testing.T) {
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindContentEnhancement,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			panic("boom")
		},
	})

	job, err := h.queue.Submit(context.Background(), entity.JobKindContentEnhancement, json.RawMessage(`{}`))
	require.NoError(t, err)

	failed := waitForStatus(t, h.repo, job.Id, entity.JobStatusFailed)
	require.NotNil(t, failed.ErrorDetail)
	assert.Equal(t, string(apperrors.CodeInternal), failed.ErrorDetail.Code)

	// The worker survived the panic and still processes new jobs.
	again, err := h.queue.Submit(context.Background(), entity.JobKindContentEnhancement, json.RawMessage(`{}`))
	require.NoError(t, err)
	waitForStatus(t, h.repo, again.Id, entity.JobStatusFailed)
}

func TestProgressIsMonotonic(t *testing.T) {
	repo := memory.NewGenerationJobRepository()
	job := &entity.GenerationJob{Kind: entity.JobKindSyllabusGeneration, Payload: json.RawMessage(`{}`), Status: entity.JobStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	claimed, err := repo.Claim(context.Background(), job.Id, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, repo.UpdateProgress(context.Background(), job.Id, 50))
	require.NoError(t, repo.UpdateProgress(context.Background(), job.Id, 25))

	got, err := repo.FindOne(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
}

func TestRequeueSweepRecoversExpiredLeases(t *testing.T) {
	var executions int32
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			atomic.AddInt32(&executions, 1)
			return json.RawMessage(`{}`), nil
		},
	})

	// A job whose worker died: claimed with an already-expired lease,
	// never dispatched.
	job := &entity.GenerationJob{Kind: entity.JobKindSyllabusGeneration, Payload: json.RawMessage(`{}`), Status: entity.JobStatusQueued}
	require.NoError(t, h.repo.Create(context.Background(), job))
	claimed, err := h.repo.Claim(context.Background(), job.Id, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	loop := NewRequeueLoop(h.repo, h.queue, time.Minute, nopLogger{})
	loop.Sweep(context.Background())

	done := waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)
	assert.Equal(t, 2, done.Attempts, "recovered job counts the lost attempt")
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestRequeueSweepRedispatchesStaleQueuedJobs(t *testing.T) {
	h := newHarness(t, &funcHandler{
		kind: entity.JobKindSyllabusGeneration,
		fn: func(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	})

	// A row whose wakeup never went out: committed as queued, but the
	// publish after Submit was lost. Only the sweep can revive it.
	job := &entity.GenerationJob{
		Kind:      entity.JobKindSyllabusGeneration,
		Payload:   json.RawMessage(`{}`),
		Status:    entity.JobStatusQueued,
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, h.repo.Create(context.Background(), job))

	loop := NewRequeueLoop(h.repo, h.queue, time.Minute, nopLogger{})
	loop.Sweep(context.Background())

	done := waitForStatus(t, h.repo, job.Id, entity.JobStatusCompleted)
	assert.Equal(t, 1, done.Attempts)
}

func TestRequeueSweepLeavesFreshQueuedJobsAlone(t *testing.T) {
	h := newHarness(t)

	job := &entity.GenerationJob{Kind: entity.JobKindSyllabusGeneration, Payload: json.RawMessage(`{}`), Status: entity.JobStatusQueued}
	require.NoError(t, h.repo.Create(context.Background(), job))

	stale, err := h.repo.FindQueuedBefore(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale, "a just-submitted job still has its wakeup in flight")
}
