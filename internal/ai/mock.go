package ai

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a test double for completion and embedding providers.
type MockProvider struct {
	Response    string
	Err         error
	LastRequest *CompletionRequest // captures the last request for inspection

	// Vectors maps input text to the embedding returned for it.
	Vectors  map[string][]float64
	EmbedErr error

	mu         sync.Mutex
	embedCalls int
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.LastRequest = &req
	m.mu.Unlock()
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      m.Response,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(m.Response),
	}, nil
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	vec, ok := m.Vectors[text]
	if !ok {
		return nil, fmt.Errorf("mock: no vector for %q", text)
	}
	return vec, nil
}

// EmbedCalls returns how many times Embed was called.
func (m *MockProvider) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
