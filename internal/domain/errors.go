package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient signals a remote failure worth retrying (network, timeout, rate limit, 5xx).
	ErrTransient = errors.New("transient service error")
	// ErrRateLimited signals a provider rate limit hit. Always accompanied by ErrTransient.
	ErrRateLimited = errors.New("rate limited")
	// ErrServiceUnavailable signals a remote service still failing after the retry budget ran out.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrProtocol signals a structurally invalid response from a remote service.
	ErrProtocol = errors.New("protocol error")
	// ErrProviderRejected signals a non-retryable rejection by a provider (4xx).
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrDimensionMismatch signals a vector whose length differs from the collection dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrConfiguration signals a violated startup invariant.
	ErrConfiguration = errors.New("configuration error")
	// ErrStorageUnavailable signals ledger or vector store connectivity loss.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConflict signals a concurrent write conflict on the ledger.
	ErrConflict = errors.New("write conflict")
	// ErrGenerationFailed signals that the language model failed or refused after retries.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidInput signals a caller supplied value that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the expected and actual lengths.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(expected, got int) error {
	return &DimensionMismatchError{Expected: expected, Got: got}
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Transient marks err as retryable while keeping it inspectable with errors.Is.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
