package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger for tests and the embedded SDK.
type Memory struct {
	mu     sync.RWMutex
	owners map[string]map[string]struct{}
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{owners: make(map[string]map[string]struct{})}
}

// Has reports whether messageID was recorded for owner.
func (l *Memory) Has(_ context.Context, owner, messageID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.owners[owner][messageID]
	return ok, nil
}

// Filter returns which of ids are already recorded.
func (l *Memory) Filter(_ context.Context, owner string, ids []string) (map[string]bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	known := make(map[string]bool)
	set := l.owners[owner]
	for _, id := range ids {
		if _, ok := set[id]; ok {
			known[id] = true
		}
	}
	return known, nil
}

// Record adds the ids not yet present under a single lock.
func (l *Memory) Record(_ context.Context, owner string, ids []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.owners[owner]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		l.owners[owner] = set
	}
	added := 0
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		added++
	}
	return added, nil
}

// Count returns how many ids owner has recorded.
func (l *Memory) Count(_ context.Context, owner string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.owners[owner]), nil
}
