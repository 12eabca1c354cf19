// Package llm talks to the local inference server.
package llm

import (
	"context"
	"strconv"
	"strings"
)

// Provider is the inference collaborator. Implementations must be safe for
// concurrent use: scheduled fires and interactive chat call it in parallel.
type Provider interface {
	// Chat returns the model's reply to the conversation in req.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// GetDefaultModel is used when req.Model is empty.
	GetDefaultModel() string
}

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// KeepAlive controls how long the server keeps the model loaded after a
// call: an integer number of seconds (-1 keeps it forever, 0 unloads
// immediately) or a duration such as "5m". It is process-wide configuration
// passed unchanged on every call.
type KeepAlive string

// MarshalJSON sends integers as JSON numbers and anything else as a string.
func (k KeepAlive) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(k))
	if n, err := strconv.Atoi(s); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return []byte(strconv.Quote(s)), nil
}

// ChatRequest is a single generation request.
type ChatRequest struct {
	Messages      []Message
	Model         string
	Temperature   float64
	ContextLength int
	KeepAlive     KeepAlive
}

// Usage reports token counts when the server provides them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
}
