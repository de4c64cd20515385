package domain

import "context"

// Role tags a chat message.
type Role string

// Chat roles understood by the language model boundary.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged message of a completion request.
type ChatMessage struct {
	Role    Role
	Content string
}

// Completion is a single generated text plus token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel is the language model boundary: ordered messages in, one text out.
type ChatModel interface {
	Complete(ctx context.Context, msgs []ChatMessage) (Completion, error)
}
