package domain

import (
	"errors"
	"fmt"
)

// Verdict is the tri-state outcome of answer verification.
type Verdict string

// Verdict values. Unknown means the answer needs human review.
const (
	VerdictConfirmed Verdict = "confirmed"
	VerdictRejected  Verdict = "rejected"
	VerdictUnknown   Verdict = "unknown"
)

// ChunkRef identifies a chunk that was fed to the language model.
type ChunkRef struct {
	ChunkID  string
	Source   SourceRef
	Ordinal  int
	Distance float64
}

// AnswerRecord is the result of a single query. It is never persisted.
type AnswerRecord struct {
	Query   string
	Answer  string
	Sources []ChunkRef
	Verdict Verdict
}

// Stage is a step of the query lifecycle. Stages only move forward.
type Stage string

// Query lifecycle stages.
const (
	StageReceived  Stage = "received"
	StageEmbedded  Stage = "embedded"
	StageRetrieved Stage = "retrieved"
	StageAnswered  Stage = "answered"
	StageVerified  Stage = "verified"
)

// StageError reports the lifecycle stage a query failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with the stage it failed to reach. An error already tagged keeps its stage.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
