package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("mailrag:inbox:idx").
		Prefix("mailrag:inbox:chunk:").
		Tag("owner").
		Numeric("seq").
		VectorHNSW("vector", 1024, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(idx.Fields))
	}
	v := idx.Fields[2]
	if v.Type != IndexFieldVector || v.VectorDim != 1024 || v.VectorDistance != DistanceCosine {
		t.Errorf("unexpected vector field %+v", v)
	}
	if v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("M/EF = %d/%d, want 16/200", v.VectorM, v.VectorEFConstruct)
	}
}

func TestIndexDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Tag("a")},
		{"bad name", NewIndex("bad name").Tag("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate", NewIndex("idx").Tag("a").Numeric("a")},
		{"zero dim", NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 16, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	if IsUnavailable(nil) {
		t.Error("nil must not be unavailable")
	}
	if !IsUnavailable(&Error{Op: OpGet, Err: fmt.Errorf("%w: closing", ErrUnavailable)}) {
		t.Error("expected wrapped ErrUnavailable to be unavailable")
	}
	if !IsUnavailable(fmt.Errorf("read: %w", io.EOF)) {
		t.Error("expected EOF to be unavailable")
	}
	if !IsUnavailable(context.DeadlineExceeded) {
		t.Error("expected deadline to be unavailable")
	}
	if IsUnavailable(errors.New("WRONGTYPE Operation against a key")) {
		t.Error("command errors must not be unavailable")
	}
}
