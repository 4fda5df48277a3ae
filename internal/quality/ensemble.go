package quality

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/provider"
)

// Ensemble fans a single evaluation out to every configured provider and
// reconciles the verdicts into one consensus decision.
type Ensemble struct {
	prompt string
	logger *slog.Logger
}

// NewEnsemble builds the evaluator with the quality prompt template.
func NewEnsemble(prompt string, log *slog.Logger) *Ensemble {
	return &Ensemble{prompt: prompt, logger: log}
}

// Evaluate queries all providers concurrently and joins before computing
// consensus. Providers share no mutable state; each writes only its own slot,
// so the verdict list keeps the configured provider order no matter which
// call finishes first. A slow or failing provider never poisons its siblings.
func (e *Ensemble) Evaluate(ctx context.Context, content, documentID string, providers []provider.Provider) domain.EnsembleResult {
	verdicts := make([]domain.Verdict, len(providers))

	var group errgroup.Group
	for i, p := range providers {
		group.Go(func() error {
			verdicts[i] = p.Evaluate(ctx, content, e.prompt, documentID)
			return nil
		})
	}
	_ = group.Wait()

	for _, v := range verdicts {
		e.debug("provider verdict",
			"document_id", documentID,
			"provider", v.Provider,
			"verdict", string(v.Kind),
			"latency_ms", v.LatencyMs)
	}

	consensus, reached := Consensus(verdicts)
	return domain.EnsembleResult{
		Verdicts:  verdicts,
		Consensus: consensus,
		Reached:   reached,
	}
}

// Consensus requires a strict majority of parseable verdicts agreeing on one
// kind. Ties, exact even splits and all-Unparseable results leave the
// decision unreached; nothing downstream may act on them.
func Consensus(verdicts []domain.Verdict) (domain.VerdictKind, bool) {
	counts := map[domain.VerdictKind]int{}
	parseable := 0
	for _, v := range verdicts {
		if !v.Kind.Parseable() {
			continue
		}
		counts[v.Kind]++
		parseable++
	}

	if parseable == 0 {
		return domain.KindUnparseable, false
	}

	for kind, count := range counts {
		if count*2 > parseable {
			return kind, true
		}
	}

	return domain.KindUnparseable, false
}

func (e *Ensemble) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
