package core

import "context"

// ChatRequest is a single JSON-mode chat completion exchanged with the
// language model. The model is instructed (via SystemPrompt) to reply with a
// JSON document only; Complete returns the raw JSON bytes of that reply.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int // 0 = provider default
}

// ChatService is any service that can run JSON-mode chat completions.
type ChatService interface {
	Complete(ctx context.Context, req ChatRequest) ([]byte, error)
}
