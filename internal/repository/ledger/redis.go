package ledger

import (
	"context"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// setStore is the consumer interface for the Redis ledger (ISP).
type setStore interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMIsMember(ctx context.Context, key string, members ...string) ([]bool, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// Redis keeps one SET per owner. SADD only adds absent members and is atomic per call.
type Redis struct {
	store setStore
}

var _ Ledger = (*Redis)(nil)

// NewRedis creates a Redis-backed ledger.
func NewRedis(s setStore) *Redis {
	return &Redis{store: s}
}

func ownerKey(owner string) string {
	return domain.KeyPrefix + "ledger:" + owner
}

// Has reports whether messageID was recorded for owner.
func (l *Redis) Has(ctx context.Context, owner, messageID string) (bool, error) {
	ok, err := l.store.SIsMember(ctx, ownerKey(owner), messageID)
	if err != nil {
		return false, storageErr("has", err)
	}
	return ok, nil
}

// Filter returns which of ids are already recorded, in one round-trip.
func (l *Redis) Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(ids) == 0 {
		return known, nil
	}
	ids = dedupe(ids)

	flags, err := l.store.SMIsMember(ctx, ownerKey(owner), ids...)
	if err != nil {
		return nil, storageErr("filter", err)
	}
	for i, ok := range flags {
		if ok {
			known[ids[i]] = true
		}
	}
	return known, nil
}

// Record adds ids with a single SADD.
func (l *Redis) Record(ctx context.Context, owner string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := l.store.SAdd(ctx, ownerKey(owner), dedupe(ids)...)
	if err != nil {
		return 0, storageErr("record", err)
	}
	return int(n), nil
}

// Count returns how many ids owner has recorded.
func (l *Redis) Count(ctx context.Context, owner string) (int, error) {
	n, err := l.store.SCard(ctx, ownerKey(owner))
	if err != nil {
		return 0, storageErr("count", err)
	}
	return int(n), nil
}
