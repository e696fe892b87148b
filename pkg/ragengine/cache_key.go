package ragengine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"ai-coursegen-be/internal/repository/contract"
)

// CacheKey derives a deterministic key from the query, the canonical
// filter rendering and the model version. Any change to the model
// version changes the key, so stale generations are never served across
// model upgrades.
func CacheKey(query string, filters contract.EmbeddingFilters, modelVersion string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("|subject=")
	b.WriteString(filters.Subject)
	b.WriteString("|class=")
	b.WriteString(filters.Class)
	b.WriteString("|board=")
	b.WriteString(filters.Board)
	b.WriteString("|teacher=")
	if filters.TeacherId != nil {
		b.WriteString(filters.TeacherId.String())
	}
	b.WriteString("|topic=")
	if filters.TopicId != nil {
		b.WriteString(filters.TopicId.String())
	}
	b.WriteString("|model=")
	b.WriteString(modelVersion)

	sum := sha256.Sum256([]byte(b.String()))
	return "ragv1:" + hex.EncodeToString(sum[:])
}
