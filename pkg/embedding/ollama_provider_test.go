package embedding

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateNormalizesVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embedding":[3.0,4.0]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "nomic-embed-text", time.Second)
	res, err := p.Generate(context.Background(), "hello", "RETRIEVAL_DOCUMENT")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	values := res.Embedding.Values
	if len(values) != 2 {
		t.Fatalf("got %d values, want 2", len(values))
	}

	var magnitude float64
	for _, v := range values {
		magnitude += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(magnitude)-1.0) > 1e-6 {
		t.Errorf("vector not normalized, magnitude = %f", math.Sqrt(magnitude))
	}
	// 3-4-5 triangle: normalized components are 0.6 and 0.8
	if math.Abs(float64(values[0])-0.6) > 1e-6 || math.Abs(float64(values[1])-0.8) > 1e-6 {
		t.Errorf("unexpected normalized values %v", values)
	}
}

func TestGenerateErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`model not loaded`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "nomic-embed-text", time.Second)
	if _, err := p.Generate(context.Background(), "hello", "RETRIEVAL_QUERY"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeVectorZero(t *testing.T) {
	vec := []float32{0, 0, 0}
	got := normalizeVector(vec)
	for i, v := range got {
		if v != 0 {
			t.Errorf("index %d = %f, want 0", i, v)
		}
	}
}
