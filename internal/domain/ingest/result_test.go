package ingest

import (
	"errors"
	"testing"
)

func TestNewProcessed(t *testing.T) {
	r := NewProcessed("alice", "m-1", 3)
	if r.Owner() != "alice" || r.MessageID() != "m-1" {
		t.Errorf("unexpected identity %q/%q", r.Owner(), r.MessageID())
	}
	if r.Outcome() != OutcomeProcessed {
		t.Errorf("Outcome() = %q, want %q", r.Outcome(), OutcomeProcessed)
	}
	if r.Chunks() != 3 {
		t.Errorf("Chunks() = %d", r.Chunks())
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewFailed(t *testing.T) {
	err := errors.New("embed failed")
	r := NewFailed("alice", "m-2", err)
	if r.Outcome() != OutcomeFailed {
		t.Errorf("Outcome() = %q, want %q", r.Outcome(), OutcomeFailed)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestNewReport(t *testing.T) {
	rep := NewReport([]Result{
		NewProcessed("a", "1", 2),
		NewSkipped("a", "2"),
		NewFailed("a", "3", errors.New("x")),
		NewProcessed("b", "1", 1),
	})
	if rep.Processed != 2 || rep.Skipped != 1 || rep.Failed != 1 {
		t.Errorf("unexpected counts %+v", rep)
	}
	if len(rep.Results) != 4 || rep.Results[2].MessageID() != "3" {
		t.Error("expected results in input order")
	}
}
