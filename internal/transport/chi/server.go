package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
	"github.com/kailas-cloud/mailrag/internal/logger"
	healthuc "github.com/kailas-cloud/mailrag/internal/usecase/health"
)

// Request limits.
const (
	MaxIngestMessages = 1000
	maxBodyBytes      = 32 << 20
	maxTopK           = 100
)

// Ingester is the write path consumed by the server.
type Ingester interface {
	Ingest(ctx context.Context, msgs []domain.Message) domingest.Report
	Seen(ctx context.Context, owner, messageID string) (bool, error)
	Count(ctx context.Context, owner string) (int, error)
}

// Querier is the read path consumed by the server.
type Querier interface {
	SubmitTopK(ctx context.Context, text string, k int) (domain.AnswerRecord, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorMapping maps a domain sentinel to an HTTP status and code.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// errorMappings is checked in order. More specific sentinels come first.
var errorMappings = []errorMapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrServiceUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
	{domain.ErrTransient, http.StatusServiceUnavailable, CodeServiceUnavailable},
	{domain.ErrGenerationFailed, http.StatusBadGateway, CodeGenerationFailed},
	{domain.ErrProtocol, http.StatusBadGateway, CodeProviderError},
	{domain.ErrProviderRejected, http.StatusBadGateway, CodeProviderError},
	{domain.ErrDimensionMismatch, http.StatusInternalServerError, CodeInternalError},
	{domain.ErrConfiguration, http.StatusInternalServerError, CodeInternalError},
}

// Server serves the mailrag HTTP API.
type Server struct {
	ingest Ingester
	query  Querier
	health HealthChecker
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, query Querier, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{ingest: ingest, query: query, health: health, logger: logger}
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		r.Post("/ingest", s.Ingest)
		r.Post("/query", s.Query)
		r.Get("/owners/{owner}/messages", s.CountMessages)
		r.Get("/owners/{owner}/messages/{messageID}", s.SeenMessage)
	})
}

// Ingest handles POST /v1/ingest. Invalid messages fail individually and do not reject the request.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "messages must not be empty")
		return
	}
	if len(req.Messages) > MaxIngestMessages {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("at most %d messages per request", MaxIngestMessages))
		return
	}

	results := make([]domingest.Result, len(req.Messages))
	valid := make([]domain.Message, 0, len(req.Messages))
	pos := make([]int, 0, len(req.Messages))
	for i, m := range req.Messages {
		msg, err := messageFromRequest(m)
		if err != nil {
			results[i] = domingest.NewFailed(m.Owner, m.MessageID, err)
			continue
		}
		valid = append(valid, msg)
		pos = append(pos, i)
	}

	if len(valid) > 0 {
		rep := s.ingest.Ingest(r.Context(), valid)
		for j, res := range rep.Results {
			results[pos[j]] = res
		}
	}

	writeJSON(w, http.StatusOK, ingestResponse(domingest.NewReport(results)))
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	k := 0
	if req.TopK != nil {
		if *req.TopK <= 0 || *req.TopK > maxTopK {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
			return
		}
		k = *req.TopK
	}

	rec, err := s.query.SubmitTopK(r.Context(), req.Query, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse(rec))
}

// SeenMessage handles GET /v1/owners/{owner}/messages/{messageID}.
func (s *Server) SeenMessage(w http.ResponseWriter, r *http.Request) {
	owner, id := gochi.URLParam(r, "owner"), gochi.URLParam(r, "messageID")
	ctx := logger.With(r.Context(), zap.String("owner", owner), zap.String("message_id", id))
	seen, err := s.ingest.Seen(ctx, owner, id)
	if err != nil {
		s.handleDomainError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, SeenResponse{Seen: seen})
}

// CountMessages handles GET /v1/owners/{owner}/messages.
func (s *Server) CountMessages(w http.ResponseWriter, r *http.Request) {
	owner := gochi.URLParam(r, "owner")
	ctx := logger.With(r.Context(), zap.String("owner", owner))
	n, err := s.ingest.Count(ctx, owner)
	if err != nil {
		s.handleDomainError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// classifyError returns the status, code and a client-safe message for err.
func classifyError(err error) (int, ErrorCode, string) {
	if errors.Is(err, context.Canceled) {
		// nginx convention for a client that went away
		return 499, CodeRequestCanceled, "request canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, CodeServiceUnavailable, "deadline exceeded"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			msg := m.sentinel.Error()
			if m.status == http.StatusBadRequest {
				// validation messages carry no internals
				msg = unwrapStage(err).Error()
			}
			if m.status == http.StatusInternalServerError {
				msg = "internal error"
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, CodeInternalError, "internal error"
}

func unwrapStage(err error) error {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}

	resp := ErrorResponse{Code: code, Message: msg}
	if stage, ok := domain.FailedStage(err); ok {
		resp.Stage = string(stage)
	}
	writeJSON(w, status, resp)
}

func messageFromRequest(m MessageRequest) (domain.Message, error) {
	var date time.Time
	if m.Date != nil {
		date = m.Date.UTC()
	}
	msg, err := domain.NewMessage(m.Owner, m.MessageID, m.From, m.Subject, date, m.Body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("build message: %w", err)
	}
	return msg, nil
}

func ingestResponse(rep domingest.Report) IngestResponse {
	items := make([]IngestResultItem, len(rep.Results))
	for i, res := range rep.Results {
		item := IngestResultItem{
			Owner:     res.Owner(),
			MessageID: res.MessageID(),
			Outcome:   string(res.Outcome()),
			Chunks:    res.Chunks(),
		}
		if res.Err() != nil {
			_, code, msg := classifyError(res.Err())
			item.Error = &ErrorResponse{Code: code, Message: msg}
		}
		items[i] = item
	}
	return IngestResponse{
		Processed: rep.Processed,
		Skipped:   rep.Skipped,
		Failed:    rep.Failed,
		Results:   items,
	}
}

func queryResponse(rec domain.AnswerRecord) QueryResponse {
	sources := make([]SourceItem, len(rec.Sources))
	for i, src := range rec.Sources {
		item := SourceItem{
			ChunkID:   src.ChunkID,
			Owner:     src.Source.Owner,
			MessageID: src.Source.MessageID,
			From:      src.Source.From,
			Subject:   src.Source.Subject,
			Ordinal:   src.Ordinal,
			Distance:  src.Distance,
		}
		if !src.Source.ReceivedAt.IsZero() {
			d := src.Source.ReceivedAt
			item.Date = &d
		}
		sources[i] = item
	}
	return QueryResponse{
		Query:   rec.Query,
		Answer:  rec.Answer,
		Verdict: string(rec.Verdict),
		Sources: sources,
	}
}
