package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/mailrag/internal/db"
	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// --- Redis ---

func TestRedis_RecordUsesOwnerKeyAndDedupes(t *testing.T) {
	var gotKey string
	var gotMembers []string
	ms := &mockSetStore{
		saddFn: func(_ context.Context, key string, members ...string) (int64, error) {
			gotKey, gotMembers = key, members
			return 1, nil
		},
	}

	n, err := NewRedis(ms).Record(context.Background(), "alice@example.com", []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 added, got %d", n)
	}
	if gotKey != "mailrag:ledger:alice@example.com" {
		t.Errorf("unexpected key %q", gotKey)
	}
	if len(gotMembers) != 2 {
		t.Errorf("expected deduplicated members, got %v", gotMembers)
	}
}

func TestRedis_Filter(t *testing.T) {
	ms := &mockSetStore{
		smismember: func(_ context.Context, _ string, members ...string) ([]bool, error) {
			out := make([]bool, len(members))
			for i, m := range members {
				out[i] = m == "known"
			}
			return out, nil
		},
	}

	known, err := NewRedis(ms).Filter(context.Background(), "o", []string{"new", "known"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !known["known"] || known["new"] {
		t.Errorf("unexpected filter result %v", known)
	}
}

func TestRedis_UnavailableIsNeverNotSeen(t *testing.T) {
	connErr := &db.Error{Op: db.OpSMIsMember, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, io.EOF)}
	ms := &mockSetStore{
		smismember: func(context.Context, string, ...string) ([]bool, error) { return nil, connErr },
		sismemberFn: func(context.Context, string, string) (bool, error) {
			return false, connErr
		},
	}
	l := NewRedis(ms)

	known, err := l.Filter(context.Background(), "o", []string{"a"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if known != nil {
		t.Error("expected no result on failure")
	}
	if _, err := l.Has(context.Background(), "o", "a"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRedis_CommandErrorIsNotUnavailable(t *testing.T) {
	ms := &mockSetStore{
		scardFn: func(context.Context, string) (int64, error) { return 0, errors.New("WRONGTYPE") },
	}
	_, err := NewRedis(ms).Count(context.Background(), "o")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		t.Error("command error must not be reported as unavailable")
	}
}

func TestRedis_EmptyInputsSkipStore(t *testing.T) {
	ms := &mockSetStore{
		saddFn: func(context.Context, string, ...string) (int64, error) {
			t.Fatal("SAdd must not be called")
			return 0, nil
		},
		smismember: func(context.Context, string, ...string) ([]bool, error) {
			t.Fatal("SMIsMember must not be called")
			return nil, nil
		},
	}
	l := NewRedis(ms)
	if n, err := l.Record(context.Background(), "o", nil); err != nil || n != 0 {
		t.Errorf("expected noop, got %d %v", n, err)
	}
	if known, err := l.Filter(context.Background(), "o", nil); err != nil || len(known) != 0 {
		t.Errorf("expected empty, got %v %v", known, err)
	}
}

// --- Memory ---

func TestMemory_RecordIsIdempotent(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	n, _ := l.Record(ctx, "o", []string{"a", "b"})
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	n, _ = l.Record(ctx, "o", []string{"b", "c", "c"})
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	count, _ := l.Count(ctx, "o")
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
	if ok, _ := l.Has(ctx, "other", "a"); ok {
		t.Error("owners must be isolated")
	}
}

func TestMemory_ConcurrentRecordConverges(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]string, 50)
			for i := range ids {
				ids[i] = fmt.Sprintf("m-%d", i)
			}
			n, _ := l.Record(ctx, "o", ids)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 50 {
		t.Errorf("expected 50 additions across writers, got %d", total)
	}
	if count, _ := l.Count(ctx, "o"); count != 50 {
		t.Errorf("expected 50, got %d", count)
	}
}

// --- Retrying ---

func TestRetrying_RetriesConflict(t *testing.T) {
	inner := &flakyLedger{Ledger: NewMemory(), err: domain.ErrConflict, failures: 2}
	l := WithRetry(inner, fastPolicy())

	n, err := l.Record(context.Background(), "o", []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || inner.calls != 3 {
		t.Errorf("expected 1 added after 3 calls, got %d after %d", n, inner.calls)
	}
}

func TestRetrying_ExhaustedUnavailable(t *testing.T) {
	inner := &flakyLedger{Ledger: NewMemory(), err: domain.ErrStorageUnavailable, failures: 10}
	l := WithRetry(inner, fastPolicy())

	_, err := l.Filter(context.Background(), "o", []string{"a"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetrying_RedisRecoversFromBlip(t *testing.T) {
	connErr := &db.Error{Op: db.OpSMIsMember, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, io.EOF)}
	calls := 0
	ms := &mockSetStore{
		smismember: func(_ context.Context, _ string, members ...string) ([]bool, error) {
			calls++
			if calls == 1 {
				return nil, connErr
			}
			return []bool{true}, nil
		},
	}
	l := WithRetry(NewRedis(ms), fastPolicy())

	known, err := l.Filter(context.Background(), "o", []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !known["a"] || calls != 2 {
		t.Errorf("expected a known after 2 calls, got %v after %d", known, calls)
	}
}

func TestRetrying_DoesNotRetryOtherErrors(t *testing.T) {
	inner := &flakyLedger{Ledger: NewMemory(), err: errors.New("syntax"), failures: 10}
	l := WithRetry(inner, fastPolicy())

	if _, err := l.Record(context.Background(), "o", []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 attempt, got %d", inner.calls)
	}
}
