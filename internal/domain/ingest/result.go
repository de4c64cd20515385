package ingest

// Outcome is the processing result of a single message in an ingestion run.
type Outcome string

// Ingestion outcomes.
const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome of ingesting one message.
type Result struct {
	owner     string
	messageID string
	outcome   Outcome
	chunks    int
	err       error
}

// NewProcessed creates a result for a message whose chunks were stored and recorded.
func NewProcessed(owner, messageID string, chunks int) Result {
	return Result{owner: owner, messageID: messageID, outcome: OutcomeProcessed, chunks: chunks}
}

// NewSkipped creates a result for a message the ledger already knew.
func NewSkipped(owner, messageID string) Result {
	return Result{owner: owner, messageID: messageID, outcome: OutcomeSkipped}
}

// NewFailed creates a failed result.
func NewFailed(owner, messageID string, err error) Result {
	return Result{owner: owner, messageID: messageID, outcome: OutcomeFailed, err: err}
}

// Owner returns the mailbox identity.
func (r Result) Owner() string { return r.owner }

// MessageID returns the message identifier.
func (r Result) MessageID() string { return r.messageID }

// Outcome returns the processing outcome.
func (r Result) Outcome() Outcome { return r.outcome }

// Chunks returns the number of chunks stored for a processed message.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report summarizes one ingestion run. Results keep input order.
type Report struct {
	Processed int
	Skipped   int
	Failed    int
	Results   []Result
}

// NewReport tallies results.
func NewReport(results []Result) Report {
	r := Report{Results: results}
	for _, res := range results {
		switch res.outcome {
		case OutcomeProcessed:
			r.Processed++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
		}
	}
	return r
}
