// Package ai provides a provider-agnostic gateway for chat completions and
// text embeddings.
package ai

import "context"

// TaskType defines the kind of AI task, used for logging and budgeting.
type TaskType int

const (
	TaskGeneration TaskType = iota
	TaskExplanation
	TaskGrading
)

func (t TaskType) String() string {
	switch t {
	case TaskGeneration:
		return "generation"
	case TaskExplanation:
		return "explanation"
	case TaskGrading:
		return "grading"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	JSON        bool      `json:"json,omitempty"` // ask the provider for a JSON object
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all completion providers implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// Embedder turns text into a dense vector. Failures are returned, never
// swallowed; callers decide how to degrade.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
