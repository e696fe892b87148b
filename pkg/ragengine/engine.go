package ragengine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/cache"
	"ai-coursegen-be/pkg/embedding"
	"ai-coursegen-be/pkg/llm"
)

// Engine runs the retrieval-augmented generation pipeline: cache lookup,
// query embedding, vector search, context assembly, generation, cache
// write-back. Cancellation is honored between stages so an abandoned job
// stops consuming the LLM.
type Engine struct {
	cacheStore        cache.Store
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
	embeddingRepo     contract.ContentEmbeddingRepository
	cfg               Config
	cacheTTL          time.Duration
	log               logger.ILogger
}

func NewEngine(
	cacheStore cache.Store,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	embeddingRepo contract.ContentEmbeddingRepository,
	cfg Config,
	cacheTTL time.Duration,
	log logger.ILogger,
) *Engine {
	return &Engine{
		cacheStore:        cacheStore,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
		embeddingRepo:     embeddingRepo,
		cfg:               cfg,
		cacheTTL:          cacheTTL,
		log:               log,
	}
}

func (e *Engine) Query(ctx context.Context, req QueryRequest) (*GeneratedAnswer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.NewValidation("query must not be empty")
	}

	key := CacheKey(req.Query, req.Filters, req.ModelVersion)

	if answer := e.lookupCache(ctx, key); answer != nil {
		e.log.Debug("ragengine", "cache hit", map[string]interface{}{"key": key})
		answer.FromCache = true
		answer.CacheKey = key
		return answer, nil
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	embeddingRes, err := e.embeddingProvider.Generate(ctx, req.Query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	scored, err := e.embeddingRepo.SearchSimilarWithScore(
		ctx,
		embeddingRes.Embedding.Values,
		e.cfg.TopK,
		req.Filters,
		e.cfg.SimilarityThreshold,
	)
	if err != nil {
		return nil, err
	}

	retrievalCtx := e.assembleContext(scored)
	if len(retrievalCtx.Chunks) == 0 {
		e.log.Debug("ragengine", "retrieval empty, falling back to ungrounded generation", map[string]interface{}{"key": key})
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	prompt := NewPromptBuilder(req.Query, retrievalCtx).Build()
	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	// The model call runs on a detached context: once in flight it is
	// never interrupted, the provider's own timeout bounds it. A cancel
	// takes effect at the stage checks around this call.
	completion, err := e.llmProvider.Chat(context.WithoutCancel(ctx), messages, e.cfg.Options...)
	if err != nil {
		return nil, err
	}

	answer := &GeneratedAnswer{
		Answer:   completion,
		Context:  retrievalCtx,
		CacheKey: key,
	}

	// Only successful generations reach the cache; failures above have
	// already returned.
	e.storeCache(ctx, key, answer)
	return answer, nil
}

// assembleContext orders chunks by descending similarity and enforces
// the char budget by dropping from the low-similarity end.
func (e *Engine) assembleContext(scored []*contract.ScoredContentEmbedding) RetrievalContext {
	chunks := make([]ContextChunk, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, ContextChunk{
			OwnerId:    s.Embedding.OwnerId,
			OwnerType:  s.Embedding.OwnerType,
			Text:       s.Embedding.Document,
			Similarity: s.Similarity,
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})

	result := RetrievalContext{}
	used := 0
	for _, chunk := range chunks {
		if e.cfg.ContextCharBudget > 0 && used+len(chunk.Text) > e.cfg.ContextCharBudget {
			result.Truncated = true
			continue
		}
		used += len(chunk.Text)
		result.Chunks = append(result.Chunks, chunk)
	}
	return result
}

func (e *Engine) lookupCache(ctx context.Context, key string) *GeneratedAnswer {
	raw, found, err := e.cacheStore.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to a miss, never to a failed query.
		e.log.Warn("ragengine", "cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil
	}
	if !found {
		return nil
	}
	var answer GeneratedAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		e.log.Warn("ragengine", "cache entry corrupt, ignoring", map[string]interface{}{"key": key, "error": err.Error()})
		return nil
	}
	return &answer
}

func (e *Engine) storeCache(ctx context.Context, key string, answer *GeneratedAnswer) {
	raw, err := json.Marshal(answer)
	if err != nil {
		e.log.Warn("ragengine", "cache marshal failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := e.cacheStore.Set(ctx, key, raw, e.cacheTTL); err != nil {
		e.log.Warn("ragengine", "cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func checkCancelled(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return apperrors.NewTimeout("generation deadline exceeded", ctx.Err())
	default:
		return ctx.Err()
	}
}
