// Package ledger records which messages have already been ingested, per owner.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/mailrag/internal/db"
	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// Ledger is the per-owner set of processed message ids.
// Unavailable storage surfaces as domain.ErrStorageUnavailable and must never be read as "not seen".
type Ledger interface {
	Has(ctx context.Context, owner, messageID string) (bool, error)
	// Filter returns the subset of ids already recorded.
	Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error)
	// Record atomically adds the ids not yet present and returns how many were added.
	Record(ctx context.Context, owner string, ids []string) (int, error)
	Count(ctx context.Context, owner string) (int, error)
}

func storageErr(op string, err error) error {
	if db.IsUnavailable(err) {
		return fmt.Errorf("%w: ledger %s: %w", domain.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("ledger %s: %w", op, err)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Retrying retries storage unavailability and write conflicts with a fresh attempt.
type Retrying struct {
	inner  Ledger
	policy retry.Policy
}

var _ Ledger = (*Retrying)(nil)

// WithRetry wraps inner so transient ledger failures are retried under p.
func WithRetry(inner Ledger, p retry.Policy) *Retrying {
	return &Retrying{
		inner: inner,
		policy: p.WithRetryable(func(err error) bool {
			return errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrConflict)
		}),
	}
}

// Has delegates with retries.
func (r *Retrying) Has(ctx context.Context, owner, messageID string) (bool, error) {
	return retry.DoValue(ctx, r.policy, func(ctx context.Context) (bool, error) {
		return r.inner.Has(ctx, owner, messageID)
	})
}

// Filter delegates with retries.
func (r *Retrying) Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error) {
	return retry.DoValue(ctx, r.policy, func(ctx context.Context) (map[string]bool, error) {
		return r.inner.Filter(ctx, owner, ids)
	})
}

// Record delegates with retries. Each attempt re-reads the current state.
func (r *Retrying) Record(ctx context.Context, owner string, ids []string) (int, error) {
	return retry.DoValue(ctx, r.policy, func(ctx context.Context) (int, error) {
		return r.inner.Record(ctx, owner, ids)
	})
}

// Count delegates with retries.
func (r *Retrying) Count(ctx context.Context, owner string) (int, error) {
	return retry.DoValue(ctx, r.policy, func(ctx context.Context) (int, error) {
		return r.inner.Count(ctx, owner)
	})
}
