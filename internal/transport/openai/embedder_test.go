package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	"github.com/kailas-cloud/mailrag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func embeddingServer(t *testing.T, data []embeddingData, tokens int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		resp := openaiEmbeddingResponse{Object: "list", Model: "test-model", Data: data}
		resp.Usage.PromptTokens = tokens
		resp.Usage.TotalTokens = tokens
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEmbedder(url string, dims int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		Dimensions: dims,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	var gotReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		resp := openaiEmbeddingResponse{Object: "list", Model: "test-model"}
		resp.Data = []embeddingData{{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3, 0.4}, Index: 0}}
		resp.Usage.PromptTokens = 10
		resp.Usage.TotalTokens = 10
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx, usage := domain.NewContextWithUsage(context.Background())
	result, err := newTestEmbedder(server.URL, 4).Embed(ctx, []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Vectors) != 1 || len(result.Vectors[0]) != 4 {
		t.Fatalf("unexpected vectors: %v", result.Vectors)
	}
	if result.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, expected 10", result.TotalTokens)
	}
	if emb, _, _ := usage.Totals(); emb != 10 {
		t.Errorf("usage collector got %d embedding tokens, expected 10", emb)
	}
	if gotReq["dimensions"] != float64(4) {
		t.Errorf("expected dimensions=4 in request, got %v", gotReq["dimensions"])
	}
}

func TestEmbedder_ReordersByIndex(t *testing.T) {
	srv := embeddingServer(t, []embeddingData{
		{Embedding: []float32{0.3, 0.4}, Index: 1},
		{Embedding: []float32{0.1, 0.2}, Index: 0},
	}, 20)

	result, err := newTestEmbedder(srv.URL, 2).Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if result.Vectors[0][0] != 0.1 || result.Vectors[1][0] != 0.3 {
		t.Errorf("order not restored by index: %v", result.Vectors)
	}
}

func TestEmbedder_EmptyInput(t *testing.T) {
	result, err := newTestEmbedder("http://unused", 0).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", result.Vectors)
	}
}

func TestEmbedder_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		data []embeddingData
	}{
		{"count mismatch", []embeddingData{{Embedding: []float32{0.1}, Index: 0}}},
		{"duplicate index", []embeddingData{{Embedding: []float32{0.1}, Index: 0}, {Embedding: []float32{0.2}, Index: 0}}},
		{"index out of range", []embeddingData{{Embedding: []float32{0.1}, Index: 0}, {Embedding: []float32{0.2}, Index: 5}}},
		{"empty vector", []embeddingData{{Embedding: []float32{0.1}, Index: 0}, {Embedding: nil, Index: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := embeddingServer(t, tt.data, 1)
			_, err := newTestEmbedder(srv.URL, 0).Embed(context.Background(), []string{"a", "b"})
			if !errors.Is(err, domain.ErrProtocol) {
				t.Fatalf("expected ErrProtocol, got %v", err)
			}
			if domain.IsTransient(err) {
				t.Error("protocol errors must not be transient")
			}
		})
	}
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, []embeddingData{{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}}, 1)

	_, err := newTestEmbedder(srv.URL, 4).Embed(context.Background(), []string{"a"})
	var dm *domain.DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dm.Expected != 4 || dm.Got != 3 {
		t.Errorf("unexpected mismatch %+v", dm)
	}
}

func TestEmbedder_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		transient   bool
		rateLimited bool
		rejected    bool
	}{
		{"rate limited", http.StatusTooManyRequests, true, true, false},
		{"server error", http.StatusInternalServerError, true, false, false},
		{"bad gateway", http.StatusBadGateway, true, false, false},
		{"unauthorized", http.StatusUnauthorized, false, false, true},
		{"bad request", http.StatusBadRequest, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "boom", "type": "test_error"},
				})
			}))
			defer srv.Close()

			_, err := newTestEmbedder(srv.URL, 0).Embed(context.Background(), []string{"hello"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.IsTransient(err); got != tt.transient {
				t.Errorf("transient = %v, want %v (%v)", got, tt.transient, err)
			}
			if got := errors.Is(err, domain.ErrRateLimited); got != tt.rateLimited {
				t.Errorf("rate limited = %v, want %v", got, tt.rateLimited)
			}
			if got := errors.Is(err, domain.ErrProviderRejected); got != tt.rejected {
				t.Errorf("rejected = %v, want %v", got, tt.rejected)
			}
		})
	}
}

func TestEmbedder_NebiusDetailBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"model not found"}`))
	}))
	defer srv.Close()

	_, err := newTestEmbedder(srv.URL, 0).Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestEmbedder_PerCallTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: srv.URL, Model: "m", Timeout: 50 * time.Millisecond})
	_, err := emb.Embed(context.Background(), []string{"hello"})
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient timeout, got %v", err)
	}
}

func TestEmbedder_CallerCancelIsNotTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEmbedder("http://127.0.0.1:1", 0).Embed(ctx, []string{"hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if domain.IsTransient(err) {
		t.Error("caller cancellation must not be retried")
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	if err := newTestEmbedder(srv.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
