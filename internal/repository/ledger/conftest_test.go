package ledger

import (
	"context"
)

// mockSetStore implements setStore with fn fields.
type mockSetStore struct {
	saddFn      func(ctx context.Context, key string, members ...string) (int64, error)
	sismemberFn func(ctx context.Context, key, member string) (bool, error)
	smismember  func(ctx context.Context, key string, members ...string) ([]bool, error)
	scardFn     func(ctx context.Context, key string) (int64, error)
}

func (m *mockSetStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if m.saddFn != nil {
		return m.saddFn(ctx, key, members...)
	}
	return int64(len(members)), nil
}

func (m *mockSetStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if m.sismemberFn != nil {
		return m.sismemberFn(ctx, key, member)
	}
	return false, nil
}

func (m *mockSetStore) SMIsMember(ctx context.Context, key string, members ...string) ([]bool, error) {
	if m.smismember != nil {
		return m.smismember(ctx, key, members...)
	}
	return make([]bool, len(members)), nil
}

func (m *mockSetStore) SCard(ctx context.Context, key string) (int64, error) {
	if m.scardFn != nil {
		return m.scardFn(ctx, key)
	}
	return 0, nil
}

// flakyLedger fails the first failures calls of every method with err.
type flakyLedger struct {
	Ledger
	err      error
	failures int
	calls    int
}

func (f *flakyLedger) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyLedger) Record(ctx context.Context, owner string, ids []string) (int, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.Ledger.Record(ctx, owner, ids)
}

func (f *flakyLedger) Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Ledger.Filter(ctx, owner, ids)
}
