package mailrag

import "github.com/kailas-cloud/mailrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrConfiguration      = domain.ErrConfiguration
	ErrStorageUnavailable = domain.ErrStorageUnavailable
	ErrServiceUnavailable = domain.ErrServiceUnavailable
	ErrRateLimited        = domain.ErrRateLimited
	ErrProviderRejected   = domain.ErrProviderRejected
	ErrProtocol           = domain.ErrProtocol
	ErrDimensionMismatch  = domain.ErrDimensionMismatch
	ErrGenerationFailed   = domain.ErrGenerationFailed
)

// FailedStage reports the query stage an error from Query failed to reach.
func FailedStage(err error) (string, bool) {
	st, ok := domain.FailedStage(err)
	return string(st), ok
}
