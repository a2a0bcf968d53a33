// Package llm provides the narrow completion client the intent parser
// delegates to. Only chat-style completion is needed; streaming, tool calls,
// and provider routing stay out of scope.
package llm

import (
	"context"
	"time"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// TokenUsage reports prompt and completion token counts when available.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionResponse is the model output for one call.
type CompletionResponse struct {
	Content string
	Usage   TokenUsage
}

// Client completes chat requests against a language model.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Config holds connection settings for a completion backend.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration // zero means the client default
}
