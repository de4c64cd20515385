package domain

// VectorSpace fixes the embedding model and geometry of a collection.
// It is written once on first use and checked on every open.
type VectorSpace struct {
	Model      string
	Dimensions int
	Metric     string
}

// DefaultVectorSpace returns the defaults tuned for text-embedding-3-large truncated to 1024 dims.
func DefaultVectorSpace() VectorSpace {
	return VectorSpace{
		Model:      "text-embedding-3-large",
		Dimensions: 1024,
		Metric:     MetricCosine,
	}
}

// Default pipeline settings.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultTopK            = 5
	DefaultMaxPromptTokens = 12000
)

// KeyPrefix prefixes every key this service writes to a key-value store.
const KeyPrefix = "mailrag:"
