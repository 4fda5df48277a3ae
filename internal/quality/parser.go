package quality

import (
	"strings"

	"DocQualityAnalyzer/internal/domain"
)

// Canonical phrases the models are instructed to answer with. Matching is
// deliberately liberal (case-insensitive substring, reasoning preambles and
// trailing text tolerated) but never guesses: zero or two matches mean the
// response carries no usable verdict.
const (
	PhraseHighQuality = "high quality"
	PhraseLowQuality  = "low quality"
)

// Parse extracts a normalized verdict kind from raw model output.
func Parse(raw string) domain.VerdictKind {
	lowered := strings.ToLower(raw)

	high := strings.Contains(lowered, PhraseHighQuality)
	low := strings.Contains(lowered, PhraseLowQuality)

	switch {
	case high && low:
		return domain.KindUnparseable
	case high:
		return domain.KindHighQuality
	case low:
		return domain.KindLowQuality
	default:
		return domain.KindUnparseable
	}
}
