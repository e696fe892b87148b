package llm

import (
	"context"
	"time"

	"ai-coursegen-be/pkg/apperrors"
)

// RetryingProvider decorates an LLMProvider with bounded retries and
// exponential backoff. Only errors classified retryable by apperrors
// are retried; validation and circuit-open errors surface immediately.
type RetryingProvider struct {
	inner       LLMProvider
	maxAttempts int
	baseDelay   time.Duration
}

var _ LLMProvider = &RetryingProvider{}

func NewRetryingProvider(inner LLMProvider, maxAttempts int, baseDelay time.Duration) *RetryingProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryingProvider{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (r *RetryingProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Chat(ctx, history, opts...)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) || attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", apperrors.NewTimeout("llm retry aborted", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", lastErr
}

func (r *RetryingProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return r.Chat(ctx, []Message{{Role: "user", Content: prompt}}, opts...)
}
