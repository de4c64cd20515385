package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// --- Mocks ---

type mockChat struct {
	mu    sync.Mutex
	text  string
	errs  []error
	calls int
	got   []domain.ChatMessage
}

func (m *mockChat) Complete(_ context.Context, msgs []domain.ChatMessage) (domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.got = msgs
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return domain.Completion{}, err
	}
	return domain.Completion{Text: m.text}, nil
}

func fastConfig() Config {
	return Config{Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}
}

func hit(id, from, subject, text string, dist float64) domain.Hit {
	return domain.Hit{
		Chunk: domain.Chunk{
			ID:     id,
			Source: domain.SourceRef{Owner: "o", MessageID: "m-" + id, From: from, Subject: subject},
			Text:   text,
		},
		Distance: dist,
	}
}

// --- Tests ---

func TestAnswer_PromptLayout(t *testing.T) {
	chat := &mockChat{text: "Bob sent it."}
	when := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	h1 := hit("c1", "bob@example.com", "Invoice", "Please find the invoice attached.", 0.1)
	h1.Chunk.Source.ReceivedAt = when
	h2 := hit("c2", "carol@example.com", "Lunch", "Lunch at noon?", 0.4)

	rec, err := New(chat, fastConfig(), zap.NewNop()).Answer(context.Background(), "who sent the invoice?", []domain.Hit{h1, h2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Answer != "Bob sent it." || rec.Verdict != domain.VerdictUnknown {
		t.Errorf("unexpected record %+v", rec)
	}
	if len(rec.Sources) != 2 || rec.Sources[0].ChunkID != "c1" || rec.Sources[1].Distance != 0.4 {
		t.Errorf("unexpected sources %+v", rec.Sources)
	}

	if len(chat.got) != 2 || chat.got[0].Role != domain.RoleSystem || chat.got[1].Role != domain.RoleUser {
		t.Fatalf("unexpected messages %+v", chat.got)
	}
	sys := chat.got[0].Content
	if !strings.HasPrefix(sys, DefaultSystemPrompt+"\n\nContext:\n") {
		t.Errorf("system message must start with the prompt and a context header:\n%s", sys)
	}
	want1 := "[1] From: bob@example.com | Subject: Invoice | Date: " + when.Format(time.RFC1123Z) +
		"\nPlease find the invoice attached."
	if !strings.Contains(sys, want1) {
		t.Errorf("missing first block %q in:\n%s", want1, sys)
	}
	if !strings.Contains(sys, "[2] From: carol@example.com | Subject: Lunch | Date: unknown\nLunch at noon?") {
		t.Errorf("missing second block in:\n%s", sys)
	}
	if strings.Index(sys, "[1]") > strings.Index(sys, "[2]") {
		t.Error("blocks must follow rank order")
	}
	if chat.got[1].Content != "who sent the invoice?" {
		t.Errorf("user message must be the query, got %q", chat.got[1].Content)
	}
}

func TestAnswer_BudgetDropsLowestRanked(t *testing.T) {
	chat := &mockChat{text: "ok"}
	big := strings.Repeat("x", 400) // ~100 tokens per block
	hits := []domain.Hit{hit("c1", "a", "s", big, 0.1), hit("c2", "a", "s", big, 0.2), hit("c3", "a", "s", big, 0.3)}

	cfg := fastConfig()
	cfg.SystemPrompt = "sys"
	cfg.MaxPromptTokens = 250
	rec, err := New(chat, cfg, zap.NewNop()).Answer(context.Background(), "q", hits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Sources) != 2 || rec.Sources[1].ChunkID != "c2" {
		t.Fatalf("expected the two best chunks, got %+v", rec.Sources)
	}
	if strings.Contains(chat.got[0].Content, "[3]") {
		t.Error("dropped chunk must not be in the prompt")
	}
	total := EstimateTokens(chat.got[0].Content) + EstimateTokens(chat.got[1].Content)
	if total > cfg.MaxPromptTokens {
		t.Errorf("prompt estimate %d exceeds limit %d", total, cfg.MaxPromptTokens)
	}
}

func TestAnswer_BudgetTooSmallForQuery(t *testing.T) {
	chat := &mockChat{text: "ok"}
	cfg := fastConfig()
	cfg.MaxPromptTokens = 10

	_, err := New(chat, cfg, zap.NewNop()).Answer(context.Background(), strings.Repeat("q", 100), nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if chat.calls != 0 {
		t.Error("model must not be called")
	}
}

func TestAnswer_ZeroHitsStillCallsModel(t *testing.T) {
	chat := &mockChat{text: "I could not find that in your emails."}
	rec, err := New(chat, fastConfig(), zap.NewNop()).Answer(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if chat.calls != 1 || len(rec.Sources) != 0 {
		t.Errorf("expected one call and no sources, got %d/%d", chat.calls, len(rec.Sources))
	}
}

func TestAnswer_RetriesTransient(t *testing.T) {
	chat := &mockChat{text: "ok", errs: []error{domain.Transient(errors.New("503"))}}
	if _, err := New(chat, fastConfig(), zap.NewNop()).Answer(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 calls, got %d", chat.calls)
	}
}

func TestAnswer_FailureIsGenerationFailed(t *testing.T) {
	rejected := errors.Join(domain.ErrProviderRejected, errors.New("content policy"))
	chat := &mockChat{errs: []error{rejected}}

	_, err := New(chat, fastConfig(), zap.NewNop()).Answer(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrGenerationFailed) || !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrGenerationFailed wrapping the cause, got %v", err)
	}
	if stage, _ := domain.FailedStage(err); stage != domain.StageAnswered {
		t.Errorf("expected stage answered, got %q", stage)
	}
	if chat.calls != 1 {
		t.Errorf("rejections must not be retried, got %d calls", chat.calls)
	}
}

func TestAnswer_EmptyCompletion(t *testing.T) {
	_, err := New(&mockChat{text: ""}, fastConfig(), zap.NewNop()).Answer(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestEstimateTokens(t *testing.T) {
	for in, want := range map[string]int{"": 0, "a": 1, "abcd": 1, "abcde": 2, "12345678": 2} {
		if got := EstimateTokens(in); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}
