package ragengine

import (
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/llm"

	"github.com/google/uuid"
)

// QueryRequest is a single retrieval-augmented generation request.
// History only shapes the prompt; it takes no part in retrieval or in
// the cache key, which hashes query, filters and model version.
type QueryRequest struct {
	Query        string
	Filters      contract.EmbeddingFilters
	History      []llm.Message
	ModelVersion string
}

// ContextChunk is one retrieved piece of content with its similarity to
// the query.
type ContextChunk struct {
	OwnerId    uuid.UUID        `json:"owner_id"`
	OwnerType  entity.OwnerType `json:"owner_type"`
	Text       string           `json:"text"`
	Similarity float64          `json:"similarity"`
}

// RetrievalContext is the assembled context handed to the prompt.
type RetrievalContext struct {
	Chunks []ContextChunk `json:"chunks"`
	// Truncated is set when the char budget forced chunks to be dropped.
	Truncated bool `json:"truncated"`
}

// GeneratedAnswer is the engine output. FromCache distinguishes a cache
// hit from a fresh generation; the payload is identical either way.
type GeneratedAnswer struct {
	Answer    string           `json:"answer"`
	Context   RetrievalContext `json:"context"`
	FromCache bool             `json:"-"`
	CacheKey  string           `json:"-"`
}

// Config encapsulates retrieval parameters. Options are applied to
// every generation call the engine makes.
type Config struct {
	TopK                int
	SimilarityThreshold float64
	ContextCharBudget   int
	Options             []llm.Option
}

// DefaultConfig returns default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		TopK:                10,
		SimilarityThreshold: 0.35,
		ContextCharBudget:   8000,
	}
}
