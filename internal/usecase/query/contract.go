package query

import (
	"context"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Retriever finds the chunks nearest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Hit, error)
}

// Answerer generates an answer grounded on hits.
type Answerer interface {
	Answer(ctx context.Context, query string, hits []domain.Hit) (domain.AnswerRecord, error)
}

// Verifier judges an answer against its question.
type Verifier interface {
	Verify(ctx context.Context, query, answer string) (domain.Verdict, error)
}
