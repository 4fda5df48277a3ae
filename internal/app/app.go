package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/infrastructure/checkpoint"
	"DocQualityAnalyzer/internal/infrastructure/llm"
	"DocQualityAnalyzer/internal/infrastructure/paperless"
	"DocQualityAnalyzer/internal/infrastructure/storage"
	"DocQualityAnalyzer/internal/logging"
	"DocQualityAnalyzer/internal/ports"
	"DocQualityAnalyzer/internal/provider"
	"DocQualityAnalyzer/internal/quality"
	"DocQualityAnalyzer/internal/retry"
	"DocQualityAnalyzer/internal/usecase"
)

// Application wires configuration to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      ports.DocumentStore
	checkpoint ports.Checkpoint
	pipeline   *usecase.Pipeline
}

// New builds a runnable application instance. Configuration validation here
// is the only condition permitted to abort a run before the loop starts.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	callOpts := llm.CallOptions{
		ContentLimit:      cfg.Evaluation.ContentLimit,
		TitleContentLimit: cfg.Evaluation.TitleContentLimit,
		Timeout:           cfg.Evaluation.Timeout(),
		TitleTimeout:      cfg.Evaluation.TitleTimeout(),
		Retry: retry.Policy{
			Attempts: cfg.Evaluation.RetryAttempts,
			Delay:    cfg.Evaluation.RetryDelay(),
			Logger:   baseLogger.With("component", "retry"),
		},
	}

	registry := provider.NewRegistry()
	registry.Register("ollama", llm.OllamaFactory(callOpts))
	registry.Register("openai", llm.OpenAIFactory(callOpts))

	providers, err := registry.Build(cfg.Providers, baseLogger.With("component", "provider"))
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	store := paperless.NewClient(cfg.Paperless, retry.Policy{
		Attempts: cfg.Evaluation.RetryAttempts,
		Delay:    cfg.Evaluation.RetryDelay(),
		Logger:   baseLogger.With("component", "retry"),
	}, baseLogger.With("component", "paperless"))

	checkpointStore, err := checkpoint.Open(cfg.Checkpoint.Path, baseLogger.With("component", "checkpoint"))
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}

	var outcomes ports.OutcomeRepository
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open outcome database: %w", err)
		}
		outcomes = storage.NewPostgresRepository(db)
	}

	ensemble := quality.NewEnsemble(cfg.Evaluation.QualityPrompt, baseLogger.With("component", "ensemble"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:      store,
		Checkpoint: checkpointStore,
		Outcomes:   outcomes,
		Ensemble:   ensemble,
		Providers:  providers,
		Titler:     providers[0],
		Logger:     baseLogger.With("component", "pipeline"),
	}, usecase.Options{
		LowQualityTagID:  cfg.Tags.LowQualityID,
		HighQualityTagID: cfg.Tags.HighQualityID,
		RenameDocuments:  cfg.Processing.RenameDocuments,
		SkipProcessed:    cfg.Processing.SkipProcessed,
		IgnoreTagged:     cfg.Processing.IgnoreTagged,
		TitlePrompt:      cfg.Evaluation.TitlePrompt,
		DocumentDelay:    cfg.Processing.DocumentDelay(),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		checkpoint: checkpointStore,
		pipeline:   pipeline,
	}, nil
}

// Run fetches documents and resolves each through the pipeline.
func (a *Application) Run(ctx context.Context) error {
	documents, err := a.store.FetchDocuments(ctx, a.cfg.Paperless.MaxDocuments)
	if err != nil {
		return fmt.Errorf("fetch documents: %w", err)
	}

	if len(documents) == 0 {
		a.logger.Info("no documents with content found")
		return nil
	}

	if _, err := a.pipeline.Run(ctx, documents); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	return nil
}

// ClearState resets the checkpoint to a fresh empty state. Idempotent.
func (a *Application) ClearState() error {
	return a.checkpoint.Clear()
}

// Progress returns the aggregated checkpoint summary.
func (a *Application) Progress() domain.CheckpointSummary {
	return a.checkpoint.Summary()
}
