package breaker

import (
	"context"
	"errors"

	"ai-coursegen-be/pkg/llm"
)

// GuardedProvider wraps an LLMProvider with a circuit breaker. Timeout,
// connection, and malformed-output errors from the inner provider count
// as breaker failures; a caller-cancelled call says nothing about the
// model's health and records no outcome. A refused call never reaches
// the model.
type GuardedProvider struct {
	inner   llm.LLMProvider
	breaker *Breaker
}

var _ llm.LLMProvider = &GuardedProvider{}

func NewGuardedProvider(inner llm.LLMProvider, b *Breaker) *GuardedProvider {
	return &GuardedProvider{inner: inner, breaker: b}
}

func (g *GuardedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if err := g.breaker.Allow(); err != nil {
		return "", err
	}
	result, err := g.inner.Chat(ctx, history, opts...)
	if err != nil && errors.Is(err, context.Canceled) {
		return result, err
	}
	g.breaker.Record(err == nil)
	return result, err
}

func (g *GuardedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
