package breaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/llm"
)

func testConfig() Config {
	return Config{
		WindowSize:       4,
		FailureThreshold: 0.5,
		MinSamples:       4,
		CoolDown:         30 * time.Second,
		MaxCoolDown:      5 * time.Minute,
	}
}

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker() (*Breaker, *fakeClock) {
	b := New("ollama/llama3", testConfig())
	clock := &fakeClock{t: time.Now()}
	b.now = clock.now
	return b, clock
}

func fail(t *testing.T, b *Breaker) {
	t.Helper()
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() unexpectedly refused: %v", err)
	}
	b.Record(false)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	// Three failures: below MinSamples window fill, still closed.
	fail(t, b)
	fail(t, b)
	fail(t, b)
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after 3 failures = %s, want closed", got)
	}

	fail(t, b)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after 4 failures = %s, want open", got)
	}

	// Open breaker refuses immediately with CircuitOpenError.
	err := b.Allow()
	if err == nil {
		t.Fatal("expected refusal while open")
	}
	if !apperrors.IsCode(err, apperrors.CodeCircuitOpen) {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 4; i++ {
		fail(t, b)
	}

	clock.advance(31 * time.Second)

	// First caller after cool-down gets the probe slot.
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", got)
	}

	// Second caller is refused while the probe is in flight.
	if err := b.Allow(); err == nil {
		t.Fatal("expected refusal while probe in flight")
	}

	// Successful probe closes the breaker and resets counters.
	b.Record(true)
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after successful probe = %s, want closed", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("closed breaker should admit, got %v", err)
	}
}

func TestBreakerReopenBacksOffExponentially(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 4; i++ {
		fail(t, b)
	}

	// First reopen: probe fails, cool-down doubles to 60s.
	clock.advance(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe, got %v", err)
	}
	b.Record(false)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state after failed probe = %s, want open", got)
	}

	clock.advance(31 * time.Second)
	if err := b.Allow(); err == nil {
		t.Fatal("expected refusal: doubled cool-down not yet elapsed")
	}

	clock.advance(30 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe after doubled cool-down, got %v", err)
	}
}

func TestBreakerRecoversWithMixedOutcomes(t *testing.T) {
	b, _ := newTestBreaker()

	// 1 failure out of 4 stays below the 50% threshold.
	fail(t, b)
	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() refused: %v", err)
		}
		b.Record(true)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %s, want closed", got)
	}
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "ok", nil
}

func (p *countingProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, nil, opts...)
}

func TestGuardedProviderStopsCallsWhenOpen(t *testing.T) {
	inner := &countingProvider{err: errors.New("connection refused")}
	b, _ := newTestBreaker()
	g := NewGuardedProvider(inner, b)

	for i := 0; i < 4; i++ {
		if _, err := g.Generate(context.Background(), "hi"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if inner.calls != 4 {
		t.Fatalf("inner calls = %d, want 4", inner.calls)
	}

	// Breaker is open now: the model must not be contacted.
	_, err := g.Generate(context.Background(), "hi")
	if !apperrors.IsCode(err, apperrors.CodeCircuitOpen) {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
	if inner.calls != 4 {
		t.Errorf("inner calls = %d, want 4 (no call while open)", inner.calls)
	}
}

func TestGuardedProviderIgnoresCancelledCalls(t *testing.T) {
	inner := &countingProvider{err: fmt.Errorf("request aborted: %w", context.Canceled)}
	b, _ := newTestBreaker()
	g := NewGuardedProvider(inner, b)

	// Well past the window: if cancellations counted, this would open.
	for i := 0; i < 8; i++ {
		if _, err := g.Generate(context.Background(), "hi"); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation error, got %v", err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %s, want closed: a cancelled call says nothing about model health", got)
	}
	if inner.calls != 8 {
		t.Fatalf("inner calls = %d, want 8", inner.calls)
	}
}

func TestRegistrySharesBreakerPerEndpoint(t *testing.T) {
	r := NewRegistry(testConfig())
	a := r.Get("ollama/llama3")
	b := r.Get("ollama/llama3")
	c := r.Get("ollama/qwen2.5")

	if a != b {
		t.Error("same endpoint should share one breaker")
	}
	if a == c {
		t.Error("different endpoints must not share state")
	}
}
