package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err   error
	block bool
}

func (m *mockProvider) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockProvider{}, &mockProvider{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{ComponentStorage, ComponentEmbedding, ComponentLLM} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
	if len(r.Failed()) != 0 {
		t.Errorf("expected no failures, got %v", r.Failed())
	}
}

func TestCheck_StorageError(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockProvider{}, &mockProvider{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentStorage] != CheckError {
		t.Errorf("expected storage %q, got %q", CheckError, r.Checks[ComponentStorage])
	}
	if r.Checks[ComponentEmbedding] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_ProvidersFail(t *testing.T) {
	svc := New(&mockPinger{}, &mockProvider{err: errors.New("401")}, &mockProvider{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	failed := r.Failed()
	if len(failed) != 2 || failed[0] != ComponentEmbedding || failed[1] != ComponentLLM {
		t.Errorf("unexpected failures %v", failed)
	}
}

func TestCheck_NilComponentsAbsent(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
	if _, ok := r.Checks[ComponentLLM]; ok {
		t.Error("llm check should be absent when llm is nil")
	}
}

func TestCheck_TimeoutBoundsSlowCheck(t *testing.T) {
	svc := New(&mockPinger{}, &mockProvider{block: true}, nil).WithTimeout(20 * time.Millisecond)

	start := time.Now()
	r := svc.Check(context.Background())

	if time.Since(start) > time.Second {
		t.Fatal("check must not wait past its timeout")
	}
	if r.Checks[ComponentEmbedding] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks[ComponentEmbedding])
	}
}

func TestPingers_FirstFailureWins(t *testing.T) {
	want := errors.New("postgres down")
	p := Pingers{&mockPinger{}, &mockPinger{err: want}, &mockPinger{err: errors.New("other")}}
	if err := p.Ping(context.Background()); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
	if err := (Pingers{&mockPinger{}}).Ping(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
