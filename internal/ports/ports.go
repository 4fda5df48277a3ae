package ports

import (
	"context"

	"DocQualityAnalyzer/internal/domain"
)

// DocumentStore exposes the external document system (fetch/tag/rename).
type DocumentStore interface {
	FetchDocuments(ctx context.Context, maxDocuments int) ([]domain.Document, error)
	TagDocument(ctx context.Context, documentID string, tagID int) error
	RenameDocument(ctx context.Context, documentID string, newTitle string) error
}

// Checkpoint records per-document outcomes durably and gates reprocessing.
type Checkpoint interface {
	IsProcessed(documentID string) bool
	Append(record domain.DocumentRecord) error
	Summary() domain.CheckpointSummary
	Clear() error
}

// OutcomeRepository mirrors final outcomes into relational storage for
// history/reporting. Optional; the checkpoint stays the source of truth.
type OutcomeRepository interface {
	SaveOutcome(ctx context.Context, record domain.DocumentRecord) error
}
