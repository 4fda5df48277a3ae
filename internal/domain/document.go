package domain

import "time"

// Document is a core entity fetched from the document store.
type Document struct {
	ID      string
	Title   string
	Content string
	Tags    []int
}

// VerdictKind is the normalized quality classification of one model response.
type VerdictKind string

const (
	KindHighQuality VerdictKind = "high quality"
	KindLowQuality  VerdictKind = "low quality"
	KindUnparseable VerdictKind = "unparseable"
)

// Parseable reports whether the verdict carries a usable classification.
func (k VerdictKind) Parseable() bool {
	return k == KindHighQuality || k == KindLowQuality
}

// Verdict is one provider's judgment, created once per call and never mutated.
type Verdict struct {
	Kind      VerdictKind
	Provider  string
	RawText   string
	LatencyMs int64
}

// EnsembleResult aggregates verdicts of all configured providers for one
// document. Verdicts keep the configured provider order regardless of
// completion order.
type EnsembleResult struct {
	Verdicts  []Verdict
	Consensus VerdictKind
	Reached   bool
}

// Outcome enumerates the terminal states of one document's workflow.
type Outcome string

const (
	OutcomeSkipped           Outcome = "skipped"
	OutcomeHighQualityTagged Outcome = "tagged_high"
	OutcomeLowQualityTagged  Outcome = "tagged_low"
	OutcomeNoConsensus       Outcome = "no_consensus"
	OutcomeError             Outcome = "error"
)

// DocumentRecord is the persisted outcome of one document. Field names form
// the durable checkpoint contract and must stay stable across releases.
type DocumentRecord struct {
	DocumentID       string      `json:"document_id"`
	Verdict          VerdictKind `json:"quality_response"`
	ConsensusReached bool        `json:"consensus_reached"`
	NewTitle         string      `json:"new_title,omitempty"`
	Error            string      `json:"error,omitempty"`
	ProcessingTime   float64     `json:"processing_time"`
	ProcessedAt      time.Time   `json:"processed_at"`
}

// Outcome derives the terminal state a record was appended under. A
// high-quality record with an error but a recorded title failed only in the
// title step, which does not change the tagging outcome; a high-quality
// record with an error and no title never got its tag applied.
func (r DocumentRecord) Outcome() Outcome {
	switch {
	case !r.ConsensusReached && r.Error != "":
		return OutcomeError
	case !r.ConsensusReached:
		return OutcomeNoConsensus
	case r.Verdict == KindLowQuality && r.Error != "":
		return OutcomeError
	case r.Verdict == KindLowQuality:
		return OutcomeLowQualityTagged
	case r.Verdict == KindHighQuality && r.Error != "" && r.NewTitle == "":
		return OutcomeError
	case r.Verdict == KindHighQuality:
		return OutcomeHighQualityTagged
	default:
		return OutcomeError
	}
}

// CheckpointState is the full persisted checkpoint. Documents are keyed by
// document id; an id appears at most once.
type CheckpointState struct {
	CreatedAt   time.Time                 `json:"created_at"`
	LastUpdated time.Time                 `json:"last_updated"`
	Documents   map[string]DocumentRecord `json:"documents"`
}

// CheckpointSummary aggregates persisted outcomes for reporting.
type CheckpointSummary struct {
	TotalProcessed      int
	HighQuality         int
	LowQuality          int
	NoConsensus         int
	ConsensusCount      int
	ErrorCount          int
	TotalProcessingTime float64
	CreatedAt           time.Time
	LastUpdated         time.Time
}

// Stats captures one pipeline run.
type Stats struct {
	Total       int
	Processed   int
	Skipped     int
	HighQuality int
	LowQuality  int
	NoConsensus int
	Errors      int
}
