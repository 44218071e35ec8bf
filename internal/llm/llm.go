// Package llm provides a unified interface over the chat-completion APIs of
// OpenAI, Anthropic and Google, selected through a catalog of model names.
package llm

import "context"

// ImagePart is a normalized image sent alongside a user message to
// vision-capable models.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
	Image   *ImagePart
}

// ChatRequest is the input to a Chat call.
type ChatRequest struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the model's complete reply.
type ChatResponse struct {
	Content string
	Model   string
}

// Provider is a connected client for one vendor's chat API.
// Implementations handle the wire differences between providers.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Name() string
	Close() error
}
