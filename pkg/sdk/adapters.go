package mailrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
)

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, texts []string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, texts)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Vectors:      r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// chatAdapter wraps public ChatModel to satisfy internal domain.ChatModel.
type chatAdapter struct {
	inner ChatModel
}

func (a *chatAdapter) Complete(ctx context.Context, msgs []domain.ChatMessage) (domain.Completion, error) {
	in := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		in[i] = ChatMessage{Role: Role(m.Role), Content: m.Content}
	}
	out, err := a.inner.Complete(ctx, in)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("complete: %w", err)
	}
	return domain.Completion{
		Text:             out.Text,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	}, nil
}

func toIngestReport(r domingest.Report) IngestReport {
	out := IngestReport{
		Processed: r.Processed,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Results:   make([]IngestResult, len(r.Results)),
	}
	for i, res := range r.Results {
		out.Results[i] = IngestResult{
			Owner:     res.Owner(),
			MessageID: res.MessageID(),
			Outcome:   Outcome(res.Outcome()),
			Chunks:    res.Chunks(),
			Err:       res.Err(),
		}
	}
	return out
}

func toAnswer(rec domain.AnswerRecord) Answer {
	a := Answer{
		Query:   rec.Query,
		Text:    rec.Answer,
		Verdict: Verdict(rec.Verdict),
		Sources: make([]Source, len(rec.Sources)),
	}
	for i, s := range rec.Sources {
		a.Sources[i] = Source{
			ChunkID:    s.ChunkID,
			Owner:      s.Source.Owner,
			MessageID:  s.Source.MessageID,
			From:       s.Source.From,
			Subject:    s.Source.Subject,
			ReceivedAt: s.Source.ReceivedAt,
			Ordinal:    s.Ordinal,
			Distance:   s.Distance,
		}
	}
	return a
}
