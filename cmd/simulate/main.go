package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/memory"
	"ai-coursegen-be/internal/service"
	"ai-coursegen-be/pkg/breaker"
	"ai-coursegen-be/pkg/cache"
	"ai-coursegen-be/pkg/embedding"
	"ai-coursegen-be/pkg/jobs"
	"ai-coursegen-be/pkg/llm"
	"ai-coursegen-be/pkg/ragengine"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

const embeddingDim = 8

// hashEmbedder is a deterministic offline stand-in for the embedding
// model: similar strings map to similar vectors often enough for a demo.
type hashEmbedder struct{}

func (hashEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	values := make([]float32, embeddingDim)
	for i, b := range []byte(text) {
		values[i%embeddingDim] += float32(b) / 255.0
	}
	var norm float64
	for _, v := range values {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range values {
			values[i] = float32(float64(values[i]) / norm)
		}
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

// scriptedLLM returns canned generations and can be switched into a
// failing mode to exercise the circuit breaker.
type scriptedLLM struct {
	failing bool
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if s.failing {
		return "", llm.ErrConnection
	}
	prompt := ""
	if len(history) > 0 {
		prompt = history[len(history)-1].Content
	}
	if strings.Contains(prompt, "JSON array") {
		return `["What pigment absorbs light during photosynthesis?", "Name the gas released by photosynthesis.", "Where in the cell does photosynthesis happen?"]`, nil
	}
	return "Unit 1: Cell Structure\nUnit 2: Photosynthesis\nUnit 3: Respiration\nUnit 4: Reproduction\nUnit 5: Heredity", nil
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func main() {
	color.Cyan("Generation Pipeline Simulation (fully in-memory)\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Infrastructure
	jobRepo := memory.NewGenerationJobRepository()
	topicRepo := memory.NewTopicRepository()
	questionRepo := memory.NewQuestionRepository()
	embeddingRepo := memory.NewContentEmbeddingRepository(embeddingDim)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	model := &scriptedLLM{}

	guarded := breaker.NewGuardedProvider(model, breaker.New("scripted", breaker.Config{
		WindowSize:       6,
		FailureThreshold: 0.5,
		MinSamples:       3,
		CoolDown:         2 * time.Second,
		MaxCoolDown:      10 * time.Second,
	}))

	engine := ragengine.NewEngine(
		cache.NewMemoryStore(time.Minute),
		hashEmbedder{},
		guarded,
		embeddingRepo,
		ragengine.Config{TopK: 5, SimilarityThreshold: 0.1, ContextCharBudget: 4000},
		time.Minute,
		nopLogger{},
	)

	publisherService := service.NewPublisherService("EMBED_CONTENT", pubSub)
	contentService := service.NewContentService(topicRepo, publisherService, nopLogger{})
	consumerService := service.NewConsumerService(
		pubSub, "EMBED_CONTENT",
		topicRepo, questionRepo, embeddingRepo,
		hashEmbedder{}, nopLogger{},
	)

	deps := service.GenerationHandlerDeps{
		Engine:       engine,
		LLMProvider:  guarded,
		TopicRepo:    topicRepo,
		QuestionRepo: questionRepo,
		ContentSvc:   contentService,
		ModelVersion: "scripted:v1",
		Log:          nopLogger{},
	}

	queue := jobs.NewQueue(jobRepo, pubSub, nopLogger{})
	pool := jobs.NewWorkerPool(jobRepo, pubSub, queue, jobs.NewRegistry(
		service.NewSyllabusGenerationHandler(deps),
		service.NewQuestionsBatchHandler(deps),
		service.NewContentEnhancementHandler(deps),
	), 2, 30*time.Second, 3, nil, nopLogger{})

	if err := consumerService.Consume(ctx); err != nil {
		color.Red("consumer failed: %v", err)
		os.Exit(1)
	}
	if err := pool.Run(ctx); err != nil {
		color.Red("worker pool failed: %v", err)
		os.Exit(1)
	}

	// 1. Seed a topic and let the consumer index it
	color.Yellow("\n[1] Creating topic (async embedding sync)")
	topicRes, err := contentService.CreateTopic(ctx, &dto.CreateTopicRequest{
		Name:    "Photosynthesis",
		Content: "Plants convert light energy into chemical energy stored in glucose.",
		Subject: "biology", Class: "10", Board: "CBSE",
	})
	if err != nil {
		color.Red("create topic failed: %v", err)
		os.Exit(1)
	}
	waitFor(func() bool {
		t, _ := topicRepo.FindOne(ctx, topicRes.Id)
		return t != nil && !t.EmbeddingPending
	})
	color.Green("topic indexed: %s", topicRes.Id)

	// 2. Syllabus generation through the full pipeline
	color.Yellow("\n[2] Submitting syllabus_generation job")
	payload, _ := json.Marshal(dto.SyllabusGenerationPayload{Subject: "biology", Class: "10", Board: "CBSE"})
	job, err := queue.Submit(ctx, entity.JobKindSyllabusGeneration, payload)
	if err != nil {
		color.Red("submit failed: %v", err)
		os.Exit(1)
	}
	done := awaitJob(ctx, queue, job.Id)
	color.Green("syllabus job %s -> %s (progress %d)", job.Id, done.Status, done.Progress)
	prettyPrint(done.Result)

	// 3. Questions batch: generates, persists, and queues embeddings
	color.Yellow("\n[3] Submitting questions_batch job")
	qPayload, _ := json.Marshal(dto.QuestionsBatchPayload{TopicId: topicRes.Id, Count: 3, Difficulty: "easy"})
	qJob, err := queue.Submit(ctx, entity.JobKindQuestionsBatch, qPayload)
	if err != nil {
		color.Red("submit failed: %v", err)
		os.Exit(1)
	}
	qDone := awaitJob(ctx, queue, qJob.Id)
	color.Green("questions job %s -> %s", qJob.Id, qDone.Status)
	prettyPrint(qDone.Result)

	// 4. Resubmitting the same syllabus request hits the cache
	color.Yellow("\n[4] Resubmitting the same syllabus request (cache hit)")
	job2, _ := queue.Submit(ctx, entity.JobKindSyllabusGeneration, payload)
	done2 := awaitJob(ctx, queue, job2.Id)
	var body map[string]interface{}
	_ = json.Unmarshal(done2.Result, &body)
	color.Green("from_cache = %v", body["from_cache"])

	// 5. Break the model and watch the circuit open
	color.Yellow("\n[5] Killing the model, expecting the breaker to open")
	model.failing = true
	for i := 0; i < 4; i++ {
		fPayload, _ := json.Marshal(dto.SyllabusGenerationPayload{
			Subject: fmt.Sprintf("subject-%d", i), Class: "10", Board: "CBSE",
		})
		fJob, _ := queue.Submit(ctx, entity.JobKindSyllabusGeneration, fPayload)
		fDone := awaitJob(ctx, queue, fJob.Id)
		detail := ""
		if fDone.ErrorDetail != nil {
			detail = fDone.ErrorDetail.Code
		}
		color.Red("job %d -> %s (%s)", i+1, fDone.Status, detail)
	}

	color.Cyan("\nSimulation complete.")
}

func awaitJob(ctx context.Context, queue *jobs.Queue, id uuid.UUID) *entity.GenerationJob {
	var job *entity.GenerationJob
	waitFor(func() bool {
		j, err := queue.GetStatus(ctx, id)
		if err != nil {
			return false
		}
		job = j
		return j.Status.Terminal()
	})
	return job
}

func waitFor(cond func() bool) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func prettyPrint(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
