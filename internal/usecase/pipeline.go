package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/ports"
	"DocQualityAnalyzer/internal/provider"
	"DocQualityAnalyzer/internal/quality"
)

const maxTitleLength = 100

// PipelineDeps wires all driven adapters into the processing pipeline.
type PipelineDeps struct {
	Store      ports.DocumentStore
	Checkpoint ports.Checkpoint
	Outcomes   ports.OutcomeRepository
	Ensemble   *quality.Ensemble
	Providers  []provider.Provider
	Titler     provider.Provider
	Logger     *slog.Logger
}

// Options control the per-document workflow.
type Options struct {
	LowQualityTagID  int
	HighQualityTagID int
	RenameDocuments  bool
	SkipProcessed    bool
	IgnoreTagged     bool
	TitlePrompt      string
	DocumentDelay    time.Duration
}

// Pipeline drives the strictly sequential per-document workflow. One document
// is fully resolved, including store actions and the durable checkpoint
// append, before the next begins. Failures are contained per document; no
// fault inside the loop aborts the run.
type Pipeline struct {
	store      ports.DocumentStore
	checkpoint ports.Checkpoint
	outcomes   ports.OutcomeRepository
	ensemble   *quality.Ensemble
	providers  []provider.Provider
	titler     provider.Provider
	logger     *slog.Logger
	opts       Options
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts Options) *Pipeline {
	return &Pipeline{
		store:      deps.Store,
		checkpoint: deps.Checkpoint,
		outcomes:   deps.Outcomes,
		ensemble:   deps.Ensemble,
		providers:  deps.Providers,
		titler:     deps.Titler,
		logger:     deps.Logger,
		opts:       opts,
	}
}

// Run processes every document in sequence and returns aggregate statistics.
// Only context cancellation ends the run early.
func (p *Pipeline) Run(ctx context.Context, documents []domain.Document) (domain.Stats, error) {
	runID := uuid.NewString()
	stats := domain.Stats{Total: len(documents)}

	p.info("starting run", "run_id", runID, "documents", len(documents))

	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("run %s interrupted: %w", runID, err)
		}

		if p.opts.IgnoreTagged && len(doc.Tags) > 0 {
			p.info("skipping already tagged document", "run_id", runID, "document_id", doc.ID)
			stats.Skipped++
			continue
		}

		if p.opts.SkipProcessed && p.checkpoint != nil && p.checkpoint.IsProcessed(doc.ID) {
			p.info("skipping already processed document", "run_id", runID, "document_id", doc.ID)
			stats.Skipped++
			continue
		}

		start := time.Now()
		record := p.processDocument(ctx, doc)
		record.ProcessingTime = time.Since(start).Seconds()
		record.ProcessedAt = time.Now().UTC()

		outcome := record.Outcome()
		stats.Processed++
		switch outcome {
		case domain.OutcomeHighQualityTagged:
			stats.HighQuality++
		case domain.OutcomeLowQualityTagged:
			stats.LowQuality++
		case domain.OutcomeNoConsensus:
			stats.NoConsensus++
		case domain.OutcomeError:
			stats.Errors++
		}

		p.info("document resolved",
			"run_id", runID,
			"document_id", doc.ID,
			"outcome", string(outcome),
			"position", fmt.Sprintf("%d/%d", i+1, len(documents)))

		if p.checkpoint != nil {
			if err := p.checkpoint.Append(record); err != nil {
				p.error("checkpoint append failed", "run_id", runID, "document_id", doc.ID, "error", err)
			}
		}

		if p.outcomes != nil {
			if err := p.outcomes.SaveOutcome(ctx, record); err != nil {
				p.warn("outcome mirror failed", "run_id", runID, "document_id", doc.ID, "error", err)
			}
		}

		if p.opts.DocumentDelay > 0 && i < len(documents)-1 {
			select {
			case <-ctx.Done():
				return stats, fmt.Errorf("run %s interrupted: %w", runID, ctx.Err())
			case <-time.After(p.opts.DocumentDelay):
			}
		}
	}

	p.info("run completed",
		"run_id", runID,
		"total", stats.Total,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"high_quality", stats.HighQuality,
		"low_quality", stats.LowQuality,
		"no_consensus", stats.NoConsensus,
		"errors", stats.Errors)

	return stats, nil
}

// processDocument walks one document through evaluation, consensus and store
// actions. Every fault, panics included, ends up in the returned record
// instead of escaping the bulkhead.
func (p *Pipeline) processDocument(ctx context.Context, doc domain.Document) (record domain.DocumentRecord) {
	record = domain.DocumentRecord{
		DocumentID: doc.ID,
		Verdict:    domain.KindUnparseable,
	}

	defer func() {
		if r := recover(); r != nil {
			p.error("panic while processing document", "document_id", doc.ID, "panic", r)
			record.Error = fmt.Sprintf("panic: %v", r)
			record.ConsensusReached = false
		}
	}()

	if p.ensemble == nil {
		record.Error = "ensemble evaluator not configured"
		return record
	}

	result := p.ensemble.Evaluate(ctx, doc.Content, doc.ID, p.providers)
	if !result.Reached {
		p.info("no consensus, document left untouched", "document_id", doc.ID)
		return record
	}

	record.ConsensusReached = true
	record.Verdict = result.Consensus

	if p.store == nil {
		record.Error = "document store not configured"
		return record
	}

	switch result.Consensus {
	case domain.KindLowQuality:
		if err := p.store.TagDocument(ctx, doc.ID, p.opts.LowQualityTagID); err != nil {
			p.error("tagging failed", "document_id", doc.ID, "error", err)
			record.Error = fmt.Sprintf("tag low quality: %v", err)
			return record
		}

	case domain.KindHighQuality:
		if err := p.store.TagDocument(ctx, doc.ID, p.opts.HighQualityTagID); err != nil {
			p.error("tagging failed", "document_id", doc.ID, "error", err)
			record.Error = fmt.Sprintf("tag high quality: %v", err)
			return record
		}

		if p.opts.RenameDocuments {
			p.renameDocument(ctx, doc, &record)
		}
	}

	return record
}

// renameDocument generates and applies a new title. Failures are recorded on
// the record but never change the tagging outcome.
func (p *Pipeline) renameDocument(ctx context.Context, doc domain.Document, record *domain.DocumentRecord) {
	title, err := p.generateTitle(ctx, doc.Content)
	record.NewTitle = title
	if err != nil {
		p.warn("title generation failed, using fallback", "document_id", doc.ID, "error", err)
		record.Error = fmt.Sprintf("generate title: %v", err)
	}

	if err := p.store.RenameDocument(ctx, doc.ID, title); err != nil {
		p.warn("rename failed", "document_id", doc.ID, "error", err)
		record.Error = joinErrors(record.Error, fmt.Sprintf("rename: %v", err))
	}
}

// generateTitle asks the primary provider for a title and falls back to the
// first words of the content. The result is always non-empty and capped.
func (p *Pipeline) generateTitle(ctx context.Context, content string) (string, error) {
	var title string
	var err error

	if p.titler != nil {
		title, err = p.titler.GenerateTitle(ctx, p.opts.TitlePrompt, content)
	}

	if strings.TrimSpace(title) == "" {
		title = fallbackTitle(content)
	}

	return capTitle(strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))), err
}

func fallbackTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return "Untitled Document"
	}
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

func capTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLength {
		return title
	}
	return string(runes[:maxTitleLength-3]) + "..."
}

func joinErrors(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) error(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
