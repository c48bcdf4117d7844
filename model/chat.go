// Package model provides chat-model adapters used by workflow nodes.
package model

import "context"

// ChatModel is the provider-neutral chat interface.
//
// Implementations handle provider-specific authentication and wire formats,
// respect context cancellation, and return provider errors unchanged; the
// calling node decides whether a failure is absorbed into a placeholder or
// surfaced.
type ChatModel interface {
	// Chat sends the conversation to the model and returns its reply.
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is a single turn in a chat conversation.
type Message struct {
	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Standard chat roles, aligned with the conventions of the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is a model's reply.
type ChatOut struct {
	// Text is the generated text.
	Text string

	// TokensUsed is the total token count reported by the provider,
	// zero when the provider does not report usage.
	TokensUsed int
}
