package mailrag

import (
	"context"
	"time"
)

// Embedder converts texts to vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (EmbeddingResult, error)
}

// EmbeddingResult carries the vectors and token usage of one Embed call.
type EmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Role tags a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one message of a completion request.
type ChatMessage struct {
	Role    Role
	Content string
}

// Completion is the generated text of one request.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel generates one completion from ordered messages.
type ChatModel interface {
	Complete(ctx context.Context, msgs []ChatMessage) (Completion, error)
}

// Message is an email to ingest. Owner and ID are required.
type Message struct {
	Owner      string
	ID         string
	From       string
	Subject    string
	ReceivedAt time.Time
	Body       string
}

// Outcome is what happened to one ingested message.
type Outcome string

// Ingest outcomes.
const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// IngestResult is the outcome of one message.
type IngestResult struct {
	Owner     string
	MessageID string
	Outcome   Outcome
	Chunks    int
	Err       error
}

// IngestReport summarizes an Ingest call. Results keep input order.
type IngestReport struct {
	Processed int
	Skipped   int
	Failed    int
	Results   []IngestResult
}

// Verdict is the verification outcome of an answer.
type Verdict string

// Verdicts. Unknown is also reported when verification is disabled.
const (
	VerdictConfirmed Verdict = "confirmed"
	VerdictRejected  Verdict = "rejected"
	VerdictUnknown   Verdict = "unknown"
)

// Source is a chunk that was placed in the prompt.
type Source struct {
	ChunkID    string
	Owner      string
	MessageID  string
	From       string
	Subject    string
	ReceivedAt time.Time
	Ordinal    int
	Distance   float64
}

// Answer is the result of a query.
type Answer struct {
	Query   string
	Text    string
	Sources []Source
	Verdict Verdict
}
