package chi

import "time"

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeProviderError      ErrorCode = "provider_error"
	CodeGenerationFailed   ErrorCode = "generation_failed"
	CodeRequestCanceled    ErrorCode = "request_canceled"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Stage is the query stage that was not reached, for query failures.
	Stage string `json:"stage,omitempty"`
}

// MessageRequest is one email in an ingest request.
type MessageRequest struct {
	Owner     string     `json:"owner"`
	MessageID string     `json:"message_id"`
	From      string     `json:"from"`
	Subject   string     `json:"subject"`
	Date      *time.Time `json:"date,omitempty"`
	Body      string     `json:"body"`
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Messages []MessageRequest `json:"messages"`
}

// IngestResultItem is the outcome of one message.
type IngestResultItem struct {
	Owner     string         `json:"owner"`
	MessageID string         `json:"message_id"`
	Outcome   string         `json:"outcome"`
	Chunks    int            `json:"chunks"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

// IngestResponse mirrors the ingest report. Results keep request order.
type IngestResponse struct {
	Processed int                `json:"processed"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Results   []IngestResultItem `json:"results"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// SourceItem is a chunk that was fed to the model.
type SourceItem struct {
	ChunkID   string     `json:"chunk_id"`
	Owner     string     `json:"owner"`
	MessageID string     `json:"message_id"`
	From      string     `json:"from,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Ordinal   int        `json:"ordinal"`
	Distance  float64    `json:"distance"`
}

// QueryResponse is the answer record of a query.
type QueryResponse struct {
	Query   string       `json:"query"`
	Answer  string       `json:"answer"`
	Verdict string       `json:"verdict"`
	Sources []SourceItem `json:"sources"`
}

// SeenResponse is the body of GET /v1/owners/{owner}/messages/{messageID}.
type SeenResponse struct {
	Seen bool `json:"seen"`
}

// CountResponse is the body of GET /v1/owners/{owner}/messages.
type CountResponse struct {
	Count int `json:"count"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
