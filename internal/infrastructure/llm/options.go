package llm

import (
	"time"

	"DocQualityAnalyzer/internal/retry"
)

// CallOptions bound every provider call: content truncation before
// transmission, per-call timeouts and the shared retry policy. Evaluation and
// title generation are tuned independently.
type CallOptions struct {
	ContentLimit      int
	TitleContentLimit int
	Timeout           time.Duration
	TitleTimeout      time.Duration
	Retry             retry.Policy
}

// truncate caps content to a rune-safe prefix before it is sent upstream.
func truncate(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}

	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}
