package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	// EFRuntime widens the HNSW candidate list for this query. 0 keeps the index default.
	EFRuntime    int
	ReturnFields []string
	// RawScores returns __vector_score as-is (a distance) instead of converting it to a similarity.
	RawScores bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hash hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
