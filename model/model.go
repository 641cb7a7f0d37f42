// Package model defines the contract for the external reasoning
// collaborator (an LLM) behind a minimal blocking interface. The tutoring
// pipeline is sequential request/response per turn, so no streaming surface
// is exposed; each call is a self-contained suspension point and no lock may
// be held across it.
package model

import (
	"context"
	"fmt"
)

// Request is one normalized model call: instructions (system prompt), a
// single user input, and an optional temperature.
type Request struct {
	Instructions string  `json:"instructions"`
	Input        string  `json:"input"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the complete model output for a Request.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface the agents and the router classifier
// require. Implementations must respect context cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// GenerateWithFallback runs the primary request and, on failure, retries
// exactly once with the simplified request. Both failing wraps the second
// error so callers can surface a generic try-again instruction.
func GenerateWithFallback(ctx context.Context, m Model, primary, simplified Request) (*Response, error) {
	resp, err := m.Generate(ctx, primary)
	if err == nil {
		return resp, nil
	}
	resp, retryErr := m.Generate(ctx, simplified)
	if retryErr == nil {
		return resp, nil
	}
	return nil, fmt.Errorf("model call failed after simplified retry: %w", retryErr)
}
