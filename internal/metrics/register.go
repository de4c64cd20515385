package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers every mailrag metric with the default registry.
func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

// RegisterWith registers every mailrag metric with reg. Only the first call has an effect.
func RegisterWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingBatchSize,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMTokensTotal,
			LLMErrorsTotal,
			IngestMessagesTotal,
			IngestChunksTotal,
			QueryStageDuration,
			QueryVerdictsTotal,
			QueryFailuresTotal,
			HTTPRequestDuration,
			HTTPRequestsTotal,
			HTTPInFlight,
		)
	})
}
