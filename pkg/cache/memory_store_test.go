package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found=%v err=%v, want miss", found, err)
	}

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	val, found, err := s.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get(k) = found=%v err=%v, want hit", found, err)
	}
	if string(val) != "v" {
		t.Errorf("Get(k) = %q, want %q", val, "v")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if err := s.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, found, _ := s.Get(ctx, "short"); found {
		t.Error("expected entry to expire")
	}
}

func TestMemoryStoreFlush(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	s.Set(ctx, "a", []byte("1"), time.Minute)
	s.Set(ctx, "b", []byte("2"), time.Minute)
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, found, _ := s.Get(ctx, "a"); found {
		t.Error("expected flush to drop entries")
	}
}
