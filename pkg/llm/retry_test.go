package llm

import (
	"context"
	"testing"
	"time"

	"ai-coursegen-be/pkg/apperrors"
)

type scriptedProvider struct {
	calls   int
	results []error
	reply   string
}

func (s *scriptedProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.reply, nil
}

func (s *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return s.Chat(ctx, []Message{{Role: "user", Content: prompt}}, opts...)
}

func TestRetryingProviderRecoversFromTransientFailure(t *testing.T) {
	inner := &scriptedProvider{
		results: []error{apperrors.NewTimeout("llm call", nil), nil},
		reply:   "recovered",
	}
	p := NewRetryingProvider(inner, 3, time.Millisecond)

	got, err := p.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "recovered" {
		t.Errorf("Generate() = %q, want %q", got, "recovered")
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestRetryingProviderExhaustsAttempts(t *testing.T) {
	inner := &scriptedProvider{
		results: []error{
			apperrors.NewTimeout("llm call", nil),
			apperrors.NewTimeout("llm call", nil),
			apperrors.NewTimeout("llm call", nil),
		},
	}
	p := NewRetryingProvider(inner, 3, time.Millisecond)

	_, err := p.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !apperrors.IsCode(err, apperrors.CodeTimeout) {
		t.Errorf("expected TIMEOUT_ERROR, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestRetryingProviderDoesNotRetryCircuitOpen(t *testing.T) {
	inner := &scriptedProvider{
		results: []error{apperrors.NewCircuitOpen("ollama/llama3")},
	}
	p := NewRetryingProvider(inner, 3, time.Millisecond)

	_, err := p.Generate(context.Background(), "hi")
	if !apperrors.IsCode(err, apperrors.CodeCircuitOpen) {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (no retry)", inner.calls)
	}
}
