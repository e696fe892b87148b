package bootstrap

import (
	"log"
	"time"

	"ai-coursegen-be/internal/config"
	"ai-coursegen-be/internal/controller"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/implementation"
	"ai-coursegen-be/internal/service"
	"ai-coursegen-be/pkg/breaker"
	"ai-coursegen-be/pkg/cache"
	"ai-coursegen-be/pkg/embedding"
	"ai-coursegen-be/pkg/jobs"
	"ai-coursegen-be/pkg/llm"
	"ai-coursegen-be/pkg/llm/ollama"
	pktNats "ai-coursegen-be/pkg/nats"
	"ai-coursegen-be/pkg/ragengine"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	GenerationController controller.IGenerationController
	ContentController    controller.IContentController

	// Background services
	ConsumerService service.IConsumerService
	WorkerPool      *jobs.WorkerPool
	RequeueLoop     *jobs.RequeueLoop

	// Infrastructure handles for shutdown
	Logger         logger.ILogger
	EventPublisher *pktNats.Publisher
}

func NewContainer(gormDB *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	jobsLogger := logger.NewIsolatedLogger("logs/jobs.log")

	// Event bus (in-process dispatch)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	// NATS lifecycle events (optional at startup)
	eventPublisher, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		eventPublisher = nil
	}

	// Cache: Redis, degrading to in-process when unreachable
	var cacheStore cache.Store
	if opt, err := redis.ParseURL(cfg.App.RedisURL); err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using in-memory cache", err)
		cacheStore = cache.NewMemoryStore(cfg.Rag.CacheTTL)
	} else {
		cacheStore = cache.NewRedisStore(redis.NewClient(opt), cfg.Rag.StoreTimeout)
	}

	// Repositories
	jobRepo := implementation.NewGenerationJobRepository(gormDB)
	embeddingRepo := implementation.NewContentEmbeddingRepository(gormDB, cfg.Ai.EmbeddingDimension)
	topicRepo := implementation.NewTopicRepository(gormDB)
	questionRepo := implementation.NewQuestionRepository(gormDB)

	// Model boundary: raw provider, bounded retries inside, circuit
	// breaker outside so one exhausted retry run counts as one outcome.
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.GenerationTimeout)
	rawLLM := ollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel, cfg.Ai.GenerationTimeout)
	retryingLLM := llm.NewRetryingProvider(rawLLM, 3, 500*time.Millisecond)

	breakerRegistry := breaker.NewRegistry(breaker.Config{
		WindowSize:       cfg.Breaker.WindowSize,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinSamples:       cfg.Breaker.MinSamples,
		CoolDown:         cfg.Breaker.CoolDown,
		MaxCoolDown:      cfg.Breaker.MaxCoolDown,
	})
	guardedLLM := breaker.NewGuardedProvider(retryingLLM, breakerRegistry.Get(cfg.Ai.OllamaBaseURL))

	genOpts := []llm.Option{
		llm.WithTemperature(cfg.Ai.Temperature),
		llm.WithTopP(cfg.Ai.TopP),
		llm.WithRepeatPenalty(cfg.Ai.RepeatPenalty),
	}

	// RAG engine
	engine := ragengine.NewEngine(
		cacheStore,
		embeddingProvider,
		guardedLLM,
		embeddingRepo,
		ragengine.Config{
			TopK:                cfg.Rag.TopK,
			SimilarityThreshold: cfg.Rag.SimilarityThreshold,
			ContextCharBudget:   cfg.Rag.ContextCharBudget,
			Options:             genOpts,
		},
		cfg.Rag.CacheTTL,
		sysLogger,
	)

	// Services
	publisherService := service.NewPublisherService(cfg.Jobs.EmbedTopicName, pubSub)
	contentService := service.NewContentService(topicRepo, publisherService, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Jobs.EmbedTopicName,
		topicRepo,
		questionRepo,
		embeddingRepo,
		embeddingProvider,
		sysLogger,
	)

	// Job pipeline
	queue := jobs.NewQueue(jobRepo, pubSub, jobsLogger)
	handlerDeps := service.GenerationHandlerDeps{
		Engine:       engine,
		LLMProvider:  guardedLLM,
		GenOpts:      genOpts,
		TopicRepo:    topicRepo,
		QuestionRepo: questionRepo,
		ContentSvc:   contentService,
		ModelVersion: cfg.Ai.LLMModel,
		Log:          jobsLogger,
	}
	registry := jobs.NewRegistry(
		service.NewSyllabusGenerationHandler(handlerDeps),
		service.NewQuestionsBatchHandler(handlerDeps),
		service.NewContentEnhancementHandler(handlerDeps),
	)

	var sink jobs.EventSink
	if eventPublisher != nil {
		sink = eventPublisher
	}
	workerPool := jobs.NewWorkerPool(
		jobRepo, pubSub, queue, registry,
		cfg.Jobs.WorkersPerKind, cfg.Jobs.LeaseTimeout, cfg.Jobs.MaxAttempts,
		sink, jobsLogger,
	)
	requeueLoop := jobs.NewRequeueLoop(jobRepo, queue, cfg.Jobs.RequeueInterval, jobsLogger)

	generationService := service.NewGenerationService(queue)

	return &Container{
		GenerationController: controller.NewGenerationController(generationService),
		ContentController:    controller.NewContentController(contentService),
		ConsumerService:      consumerService,
		WorkerPool:           workerPool,
		RequeueLoop:          requeueLoop,
		Logger:               sysLogger,
		EventPublisher:       eventPublisher,
	}
}
