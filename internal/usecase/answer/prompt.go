package answer

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// DefaultSystemPrompt is the question-answering instruction sent before the context blocks.
const DefaultSystemPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question about emails received recently. " +
	"Analyze each of the emails and use relevant information to answer the user's query."

const contextHeader = "\n\nContext:\n"

// EstimateTokens approximates a token count as one token per four bytes, rounded up.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// contextBlock renders one retrieved chunk. n is 1-based.
func contextBlock(n int, c domain.Chunk) string {
	date := "unknown"
	if !c.Source.ReceivedAt.IsZero() {
		date = c.Source.ReceivedAt.Format(time.RFC1123Z)
	}
	return fmt.Sprintf("[%d] From: %s | Subject: %s | Date: %s\n%s\n\n",
		n, c.Source.From, c.Source.Subject, date, c.Text)
}

// buildPrompt adds blocks in rank order while the estimate stays within maxTokens.
// The lowest-ranked hits are dropped first. Only the included hits are returned as sources.
func buildPrompt(systemPrompt, query string, hits []domain.Hit, maxTokens int) ([]domain.ChatMessage, []domain.ChunkRef, error) {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString(contextHeader)

	if maxTokens > 0 && EstimateTokens(b.String())+EstimateTokens(query) > maxTokens {
		return nil, nil, fmt.Errorf("%w: query and system prompt need ~%d tokens, limit is %d",
			domain.ErrInvalidInput, EstimateTokens(b.String())+EstimateTokens(query), maxTokens)
	}

	sources := make([]domain.ChunkRef, 0, len(hits))
	for _, h := range hits {
		block := contextBlock(len(sources)+1, h.Chunk)
		if maxTokens > 0 && EstimateTokens(b.String()+block)+EstimateTokens(query) > maxTokens {
			break
		}
		b.WriteString(block)
		sources = append(sources, domain.ChunkRef{
			ChunkID:  h.Chunk.ID,
			Source:   h.Chunk.Source,
			Ordinal:  h.Chunk.Ordinal,
			Distance: h.Distance,
		})
	}

	msgs := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: strings.TrimRight(b.String(), "\n")},
		{Role: domain.RoleUser, Content: query},
	}
	return msgs, sources, nil
}
