// Package query runs the read path: retrieve, answer, then optionally verify.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/metrics"
)

// MaxQueryLen bounds the query text in bytes.
const MaxQueryLen = 8192

// Service is the synchronous query pipeline.
type Service struct {
	retriever Retriever
	answerer  Answerer
	verifier  Verifier
	topK      int
	logger    *zap.Logger
}

// New creates a query pipeline. A nil verifier disables verification and every
// record then carries VerdictUnknown.
func New(r Retriever, a Answerer, v Verifier, topK int, logger *zap.Logger) *Service {
	return &Service{retriever: r, answerer: a, verifier: v, topK: topK, logger: logger}
}

// Submit answers text with the configured top-k.
func (s *Service) Submit(ctx context.Context, text string) (domain.AnswerRecord, error) {
	return s.SubmitTopK(ctx, text, s.topK)
}

// SubmitTopK answers text using the k nearest chunks. Any failure returns a
// *domain.StageError and no partial record.
func (s *Service) SubmitTopK(ctx context.Context, text string, k int) (domain.AnswerRecord, error) {
	text = strings.TrimSpace(text)
	if err := validate(text); err != nil {
		return s.fail(domain.AtStage(domain.StageReceived, err))
	}

	var hits []domain.Hit
	err := s.stage(ctx, domain.StageRetrieved, func(ctx context.Context) error {
		var err error
		hits, err = s.retriever.Retrieve(ctx, text, k)
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	var rec domain.AnswerRecord
	err = s.stage(ctx, domain.StageAnswered, func(ctx context.Context) error {
		var err error
		rec, err = s.answerer.Answer(ctx, text, hits)
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	rec.Verdict = domain.VerdictUnknown
	if s.verifier != nil {
		err = s.stage(ctx, domain.StageVerified, func(ctx context.Context) error {
			v, err := s.verifier.Verify(ctx, text, rec.Answer)
			rec.Verdict = v
			return err
		})
		if err != nil {
			return s.fail(err)
		}
	}

	metrics.QueryVerdictsTotal.WithLabelValues(string(rec.Verdict)).Inc()
	s.logger.Info("Query answered",
		zap.Int("hits", len(hits)),
		zap.Int("sources", len(rec.Sources)),
		zap.String("verdict", string(rec.Verdict)),
	)
	return rec, nil
}

// stage times fn and tags its error with the stage it failed to reach.
// A cancelled ctx stops the pipeline before any further remote call.
func (s *Service) stage(ctx context.Context, st domain.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return domain.AtStage(st, err)
	}
	start := time.Now()
	err := fn(ctx)
	metrics.QueryStageDuration.WithLabelValues(string(st)).Observe(time.Since(start).Seconds())
	return domain.AtStage(st, err)
}

func (s *Service) fail(err error) (domain.AnswerRecord, error) {
	stage, _ := domain.FailedStage(err)
	metrics.QueryFailuresTotal.WithLabelValues(string(stage)).Inc()
	if !errors.Is(err, context.Canceled) {
		s.logger.Warn("Query failed", zap.String("stage", string(stage)), zap.Error(err))
	}
	return domain.AnswerRecord{}, err
}

func validate(text string) error {
	switch {
	case text == "":
		return fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	case len(text) > MaxQueryLen:
		return fmt.Errorf("%w: query is too long", domain.ErrInvalidInput)
	case !utf8.ValidString(text):
		return fmt.Errorf("%w: query is not valid UTF-8", domain.ErrInvalidInput)
	}
	return nil
}
