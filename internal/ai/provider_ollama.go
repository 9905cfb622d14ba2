package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultOllamaChatModel  = "llama3:8b"
	defaultOllamaEmbedModel = "nomic-embed-text"
)

// OllamaProvider implements Provider and Embedder for self-hosted Ollama.
// Completions use the OpenAI-compatible /v1/chat/completions endpoint;
// embeddings use the native /api/embed endpoint.
type OllamaProvider struct {
	baseURL    string
	client     *http.Client
	chatModel  string
	embedModel string
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		p.client = client
	}
}

// WithOllamaModels overrides the completion and embedding models.
func WithOllamaModels(chat, embed string) OllamaOption {
	return func(p *OllamaProvider) {
		if chat != "" {
			p.chatModel = chat
		}
		if embed != "" {
			p.embedModel = embed
		}
	}
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    baseURL,
		client:     http.DefaultClient,
		chatModel:  defaultOllamaChatModel,
		embedModel: defaultOllamaEmbedModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var oaiResp openaiResponse
	if err := p.postJSON(ctx, "/v1/chat/completions", buildOpenAIRequest(req, p.chatModel), &oaiResp); err != nil {
		return CompletionResponse{}, err
	}

	if len(oaiResp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("no choices in response")
	}

	return CompletionResponse{
		Content:      oaiResp.Choices[0].Message.Content,
		Model:        oaiResp.Model,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
	}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	var embResp ollamaEmbedResponse
	if err := p.postJSON(ctx, "/api/embed", ollamaEmbedRequest{Model: p.embedModel, Input: text}, &embResp); err != nil {
		return nil, err
	}
	if len(embResp.Embeddings) == 0 || len(embResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return embResp.Embeddings[0], nil
}

func (p *OllamaProvider) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
