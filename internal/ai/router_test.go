package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("openai", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("openai", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()

	router.Register("openai", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("ollama", &ai.MockProvider{Err: errors.New("fail 2")})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error with no providers")
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}
	if router.HasEmbedder() {
		t.Error("HasEmbedder() should be false with no embedders")
	}

	mock := ai.NewMockProvider("ok")
	router.Register("mock", mock)
	router.RegisterEmbedder("mock", mock)
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
	if !router.HasEmbedder() {
		t.Error("HasEmbedder() should be true after RegisterEmbedder")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	// First registered should be tried first.
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
}

func TestRouter_EmbedFallback(t *testing.T) {
	router := ai.NewRouter()

	router.RegisterEmbedder("broken", &ai.MockProvider{EmbedErr: errors.New("quota exceeded")})
	router.RegisterEmbedder("working", &ai.MockProvider{Vectors: map[string][]float64{"cell": {1, 2}}})

	vec, err := router.Embed(context.Background(), "cell")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("Embed() = %v, want 2 dims", vec)
	}
}

func TestRouter_EmbedNoEmbedders(t *testing.T) {
	router := ai.NewRouter()
	if _, err := router.Embed(context.Background(), "cell"); err == nil {
		t.Fatal("Embed() should return error with no embedders")
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail with no providers")
	}

	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail when every provider is down")
	}

	router.Register("up", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil when one provider is up", err)
	}
}
