package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// classify maps a go-openai failure onto the domain error taxonomy.
// parent is the caller's context: its cancellation is returned as is, never as transient.
func classify(parent context.Context, what string, err error) error {
	if perr := parent.Err(); perr != nil {
		return fmt.Errorf("%s: %w", what, perr)
	}

	status, detail := statusAndDetail(err)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %d %s: %w: %w", what, status, detail, domain.ErrTransient, domain.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%s: %d %s: %w", what, status, detail, domain.ErrTransient)
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%s: %d %s: %w", what, status, detail, domain.ErrTransient)
	case status >= 400:
		return fmt.Errorf("%s: %d %s: %w", what, status, detail, domain.ErrProviderRejected)
	}

	// per-call deadline, dial and read failures
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout: %w", what, domain.Transient(err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w", what, domain.Transient(err))
	}

	// an undecodable body or any other transport-level surprise
	return fmt.Errorf("%s: %w: %w", what, domain.ErrProtocol, err)
}

func statusAndDetail(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if d := extractDetail(reqErr.Body); d != "" {
			return reqErr.HTTPStatusCode, d
		}
		return reqErr.HTTPStatusCode, string(reqErr.Body)
	}
	return 0, ""
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	case errors.Is(err, domain.ErrProviderRejected):
		return "rejected"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrProtocol):
		return "protocol"
	default:
		return "other"
	}
}
