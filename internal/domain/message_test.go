package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewMessage_Valid(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	m, err := NewMessage(" alice@example.com ", "<id-1@mail>", "Bob <bob@example.com>", "Lunch", at, "See you at noon.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Owner() != "alice@example.com" {
		t.Errorf("expected trimmed owner, got %q", m.Owner())
	}
	want := "From: Bob <bob@example.com>\nSubject: Lunch\nDate: Fri, 01 Mar 2024 09:30:00 +0000\n\nSee you at noon."
	if m.Text() != want {
		t.Errorf("unexpected text:\n%s", m.Text())
	}
}

func TestNewMessage_Validation(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		id    string
		body  string
	}{
		{"empty owner", "", "id", "body"},
		{"blank id", "owner", "   ", "body"},
		{"long id", "owner", strings.Repeat("x", MaxIdentifierLen+1), "body"},
		{"no content", "owner", "id", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMessage(tt.owner, tt.id, "", "", time.Time{}, tt.body)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMessage_TextOmitsEmptyHeaders(t *testing.T) {
	m, err := NewMessage("o", "id", "", "Only subject", time.Time{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Text() != "Subject: Only subject\n" {
		t.Errorf("unexpected text %q", m.Text())
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("owner", "msg", 0)
	if a != ChunkID("owner", "msg", 0) {
		t.Error("expected stable id")
	}
	if a == ChunkID("owner", "msg", 1) {
		t.Error("expected ordinal to change id")
	}
	if a == ChunkID("other", "msg", 0) {
		t.Error("expected owner to change id")
	}
	// owner/message boundary must not be ambiguous
	if ChunkID("ab", "c", 0) == ChunkID("a", "bc", 0) {
		t.Error("expected separator to disambiguate")
	}
}

func TestAtStage_KeepsFirstStage(t *testing.T) {
	cause := errors.New("boom")
	err := AtStage(StageEmbedded, cause)
	err = AtStage(StageRetrieved, err)

	stage, ok := FailedStage(err)
	if !ok || stage != StageEmbedded {
		t.Errorf("expected stage embedded, got %q", stage)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
	if AtStage(StageAnswered, nil) != nil {
		t.Error("expected nil")
	}
}
