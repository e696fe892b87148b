package ragengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/internal/repository/memory"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/cache"
	"ai-coursegen-be/pkg/embedding"
	"ai-coursegen-be/pkg/llm"

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

type stubEmbeddingProvider struct {
	vector []float32
}

func (s *stubEmbeddingProvider) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: s.vector},
	}, nil
}

type stubLLM struct {
	calls    int
	answer   string
	failFor  int
	lastSent []llm.Message
	chatHook func(ctx context.Context)
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	s.calls++
	s.lastSent = messages
	if s.chatHook != nil {
		s.chatHook(ctx)
	}
	if s.calls <= s.failFor {
		return "", apperrors.NewTimeout("generation deadline exceeded", errors.New("upstream timeout"))
	}
	return s.answer, nil
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func seedEmbedding(t *testing.T, repo contract.ContentEmbeddingRepository, doc string, vec []float32, subject string) {
	t.Helper()
	err := repo.Upsert(context.Background(), &entity.ContentEmbedding{
		OwnerId:        uuid.New(),
		OwnerType:      entity.OwnerTypeTopic,
		Document:       doc,
		EmbeddingValue: vec,
		Subject:        subject,
		Class:          "10",
		Board:          "CBSE",
	})
	require.NoError(t, err)
}

func newTestEngine(llmStub *stubLLM, repo contract.ContentEmbeddingRepository, cfg Config) *Engine {
	return NewEngine(
		cache.NewMemoryStore(time.Minute),
		&stubEmbeddingProvider{vector: []float32{1, 0, 0}},
		llmStub,
		repo,
		cfg,
		time.Minute,
		nopLogger{},
	)
}

func TestQuerySecondCallServedFromCache(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	seedEmbedding(t, repo, "photosynthesis basics", []float32{1, 0, 0}, "biology")
	llmStub := &stubLLM{answer: "generated syllabus"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	req := QueryRequest{
		Query:        "syllabus for photosynthesis",
		Filters:      contract.EmbeddingFilters{Subject: "biology"},
		ModelVersion: "llama3:v1",
	}

	first, err := engine.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "generated syllabus", first.Answer)

	second, err := engine.Query(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, llmStub.calls, "cache hit must not reach the model")
}

func TestQueryCancellationNeverInterruptsModelCall(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	llmStub := &stubLLM{answer: "finished generation"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	llmStub.chatHook = func(chatCtx context.Context) {
		// The cancel lands while the call is in flight; the call's own
		// context must not observe it.
		cancel()
		assert.NoError(t, chatCtx.Err(), "model call context cancelled mid-flight")
	}

	answer, err := engine.Query(ctx, QueryRequest{Query: "syllabus for photosynthesis", ModelVersion: "llama3:v1"})
	require.NoError(t, err)
	assert.Equal(t, "finished generation", answer.Answer)
	assert.Equal(t, 1, llmStub.calls)
}

func TestQueryHistoryPrecedesPromptButNotCacheKey(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	llmStub := &stubLLM{answer: "follow-up answer"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	history := []llm.Message{
		{Role: "user", Content: "draft a syllabus"},
		{Role: "assistant", Content: "Unit 1: Cells"},
	}
	req := QueryRequest{
		Query:        "expand unit 1",
		History:      history,
		ModelVersion: "llama3:v1",
	}

	first, err := engine.Query(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, llmStub.lastSent, 3)
	assert.Equal(t, history[0], llmStub.lastSent[0])
	assert.Equal(t, history[1], llmStub.lastSent[1])
	assert.Contains(t, llmStub.lastSent[2].Content, "expand unit 1")

	// Same query without history hits the cached entry: history never
	// participates in the key.
	second, err := engine.Query(context.Background(), QueryRequest{
		Query:        "expand unit 1",
		ModelVersion: "llama3:v1",
	})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, llmStub.calls)
}

func TestQueryEmptyRetrievalStillGenerates(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	llmStub := &stubLLM{answer: "ungrounded answer"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	answer, err := engine.Query(context.Background(), QueryRequest{
		Query:        "explain tides",
		ModelVersion: "llama3:v1",
	})
	require.NoError(t, err)
	assert.Empty(t, answer.Context.Chunks)
	assert.Equal(t, "ungrounded answer", answer.Answer)
	assert.Equal(t, 1, llmStub.calls)
}

func TestQueryFailuresAreNotCached(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	llmStub := &stubLLM{answer: "eventual answer", failFor: 1}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	req := QueryRequest{Query: "explain tides", ModelVersion: "llama3:v1"}

	_, err := engine.Query(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTimeout))

	answer, err := engine.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, answer.FromCache, "a failed generation must not poison the cache")
	assert.Equal(t, 2, llmStub.calls)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	engine := newTestEngine(&stubLLM{}, memory.NewContentEmbeddingRepository(3), DefaultConfig())

	_, err := engine.Query(context.Background(), QueryRequest{Query: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestQueryHonorsFilters(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	seedEmbedding(t, repo, "biology doc", []float32{1, 0, 0}, "biology")
	seedEmbedding(t, repo, "history doc", []float32{1, 0, 0}, "history")
	llmStub := &stubLLM{answer: "answer"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	answer, err := engine.Query(context.Background(), QueryRequest{
		Query:        "anything",
		Filters:      contract.EmbeddingFilters{Subject: "biology"},
		ModelVersion: "llama3:v1",
	})
	require.NoError(t, err)
	require.Len(t, answer.Context.Chunks, 1)
	assert.Equal(t, "biology doc", answer.Context.Chunks[0].Text)
}

func TestContextBudgetDropsLowestSimilarityFirst(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	// Near-identical vector scores higher than the orthogonal-ish one.
	seedEmbedding(t, repo, "high similarity chunk text", []float32{1, 0, 0}, "biology")
	seedEmbedding(t, repo, "lower similarity chunk text", []float32{0.7, 0.7, 0}, "biology")

	cfg := DefaultConfig()
	cfg.ContextCharBudget = len("high similarity chunk text") + 3
	llmStub := &stubLLM{answer: "answer"}
	engine := newTestEngine(llmStub, repo, cfg)

	answer, err := engine.Query(context.Background(), QueryRequest{
		Query:        "anything",
		Filters:      contract.EmbeddingFilters{Subject: "biology"},
		ModelVersion: "llama3:v1",
	})
	require.NoError(t, err)
	require.Len(t, answer.Context.Chunks, 1)
	assert.Equal(t, "high similarity chunk text", answer.Context.Chunks[0].Text)
	assert.True(t, answer.Context.Truncated)
}

func TestQueryStopsOnCancelledContext(t *testing.T) {
	repo := memory.NewContentEmbeddingRepository(3)
	llmStub := &stubLLM{answer: "never"}
	engine := newTestEngine(llmStub, repo, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Query(ctx, QueryRequest{Query: "anything", ModelVersion: "v1"})
	require.Error(t, err)
	assert.Equal(t, 0, llmStub.calls)
}

func TestCacheKeyChangesWithModelVersion(t *testing.T) {
	filters := contract.EmbeddingFilters{Subject: "biology"}
	k1 := CacheKey("same query", filters, "llama3:v1")
	k2 := CacheKey("same query", filters, "llama3:v2")
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, CacheKey("same query", filters, "llama3:v1"))
}
