package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/ports"
)

// PostgresRepository mirrors final document outcomes into Postgres for
// history and reporting. The JSON checkpoint stays the source of truth for
// skip decisions; a failed mirror write never fails a document.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.OutcomeRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveOutcome upserts the outcome snapshot keyed by document id.
func (r *PostgresRepository) SaveOutcome(ctx context.Context, record domain.DocumentRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("document_outcomes").
		Columns("document_id", "quality_response", "consensus_reached",
			"new_title", "error", "processing_time", "processed_at").
		Values(record.DocumentID, string(record.Verdict), record.ConsensusReached,
			record.NewTitle, record.Error, record.ProcessingTime, record.ProcessedAt).
		Suffix(`ON CONFLICT (document_id) DO UPDATE
                SET quality_response = EXCLUDED.quality_response,
                    consensus_reached = EXCLUDED.consensus_reached,
                    new_title = EXCLUDED.new_title,
                    error = EXCLUDED.error,
                    processing_time = EXCLUDED.processing_time,
                    processed_at = EXCLUDED.processed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert outcome: %w", err)
	}

	return nil
}
