package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace seeds deterministic chunk ids. Changing it orphans every stored chunk.
var chunkNamespace = uuid.MustParse("6f1c2b0e-4f7a-5d0b-9a57-3c0f1e2d8b41")

// SourceRef points back to the message a chunk was cut from.
type SourceRef struct {
	Owner      string
	MessageID  string
	From       string
	Subject    string
	ReceivedAt time.Time
}

// Chunk is a bounded text segment of a message, the unit of embedding and retrieval.
type Chunk struct {
	ID      string
	Source  SourceRef
	Ordinal int
	Text    string
}

// ChunkID derives the stable id of the ordinal-th chunk of a message.
// Re-chunking the same message yields the same ids, which keeps upserts idempotent.
func ChunkID(owner, messageID string, ordinal int) string {
	name := owner + "\x00" + messageID + "\x00" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// MetricCosine is the only distance metric collections accept.
const MetricCosine = "cosine"

// Record is a chunk together with its embedding, as persisted by the vector store.
type Record struct {
	Chunk  Chunk
	Vector []float32
	Metric string
}

// Hit is one retrieval result. Lower distance means more similar.
type Hit struct {
	Chunk    Chunk
	Distance float64
}
