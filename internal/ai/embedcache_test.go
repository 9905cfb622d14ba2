package ai

import (
	"context"
	"errors"
	"testing"
)

func TestCachedEmbedder_LocalCache(t *testing.T) {
	mock := &MockProvider{Vectors: map[string][]float64{"ion": {0.5, 0.5}}}
	cached := NewCachedEmbedder(mock, "test", nil)
	ctx := context.Background()

	for range 3 {
		vec, err := cached.Embed(ctx, "ion")
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if len(vec) != 2 {
			t.Fatalf("Embed() = %v, want 2 dims", vec)
		}
	}
	if mock.EmbedCalls() != 1 {
		t.Errorf("EmbedCalls() = %d, want 1 (cached)", mock.EmbedCalls())
	}
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	mock := &MockProvider{EmbedErr: errors.New("timeout")}
	cached := NewCachedEmbedder(mock, "test", nil)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "ion"); err == nil {
		t.Fatal("Embed() should propagate the error")
	}

	mock.EmbedErr = nil
	mock.Vectors = map[string][]float64{"ion": {1}}
	if _, err := cached.Embed(ctx, "ion"); err != nil {
		t.Fatalf("Embed() error = %v after recovery", err)
	}
	if mock.EmbedCalls() != 2 {
		t.Errorf("EmbedCalls() = %d, want 2", mock.EmbedCalls())
	}
}

func TestCachedEmbedder_LocalCacheBounded(t *testing.T) {
	mock := &MockProvider{Vectors: map[string][]float64{"a": {1}, "b": {2}, "c": {3}}}
	cached := NewCachedEmbedder(mock, "test", nil)
	cached.localMax = 2
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := cached.Embed(ctx, text); err != nil {
			t.Fatalf("Embed(%q) error = %v", text, err)
		}
	}
	if len(cached.local) > 2 {
		t.Errorf("local cache size = %d, want <= 2", len(cached.local))
	}
}

func TestCachedEmbedder_KeyIncludesNamespace(t *testing.T) {
	a := NewCachedEmbedder(nil, "openai", nil)
	b := NewCachedEmbedder(nil, "gemini", nil)
	if a.key("x") == b.key("x") {
		t.Error("keys for different namespaces should differ")
	}
	if a.key("x") == a.key("y") {
		t.Error("keys for different texts should differ")
	}
}
