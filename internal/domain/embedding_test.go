package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) (EmbeddingResult, error) {
	s.got = texts
	return s.result, s.err
}

func TestCheckEmbeddings_CardinalityMismatch(t *testing.T) {
	res := EmbeddingResult{Vectors: [][]float32{{0.1, 0.2}}}

	err := CheckEmbeddings(res, 2, 2)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestCheckEmbeddings_EmptyVector(t *testing.T) {
	res := EmbeddingResult{Vectors: [][]float32{{0.1}, {}}}

	if err := CheckEmbeddings(res, 2, 0); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestCheckEmbeddings_DimensionMismatch(t *testing.T) {
	res := EmbeddingResult{Vectors: [][]float32{{0.1, 0.2, 0.3}}}

	err := CheckEmbeddings(res, 1, 2)
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dm.Expected != 2 || dm.Got != 3 {
		t.Errorf("expected 2/3, got %d/%d", dm.Expected, dm.Got)
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("expected errors.Is(err, ErrDimensionMismatch)")
	}
}

func TestEmbedOne(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Vectors: [][]float32{{0.5, 0.5}}}}

	vec, err := EmbedOne(context.Background(), inner, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.got) != 1 || inner.got[0] != "hello" {
		t.Errorf("expected single text request, got %v", inner.got)
	}
	if len(vec) != 2 {
		t.Errorf("expected 2-element vector, got %d", len(vec))
	}
}

func TestEmbedOne_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}

	_, err := EmbedOne(context.Background(), inner, "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestTransient(t *testing.T) {
	base := errors.New("connection reset")
	err := Transient(base)
	if !IsTransient(err) {
		t.Error("expected transient")
	}
	if !errors.Is(err, base) {
		t.Error("expected cause to stay inspectable")
	}
	if Transient(nil) != nil {
		t.Error("expected nil for nil")
	}
	if Transient(err) != err {
		t.Error("expected already transient error unchanged")
	}
}
