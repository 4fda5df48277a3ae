package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"DocQualityAnalyzer/internal/app"
	"DocQualityAnalyzer/internal/config"
	"DocQualityAnalyzer/internal/logging"
)

func main() {
	clearState := flag.Bool("clear-state", false, "reset the processing checkpoint and exit")
	showProgress := flag.Bool("show-progress", false, "print the checkpoint summary and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	switch {
	case *clearState:
		if err := application.ClearState(); err != nil {
			logger.Error("clear state failed", "error", err)
			os.Exit(1)
		}
		logger.Info("checkpoint cleared")

	case *showProgress:
		summary := application.Progress()
		logger.Info("checkpoint summary",
			"total_processed", summary.TotalProcessed,
			"high_quality", summary.HighQuality,
			"low_quality", summary.LowQuality,
			"no_consensus", summary.NoConsensus,
			"consensus_count", summary.ConsensusCount,
			"errors", summary.ErrorCount,
			"total_processing_seconds", summary.TotalProcessingTime,
			"created_at", summary.CreatedAt,
			"last_updated", summary.LastUpdated)

	default:
		if err := application.Run(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
	}
}
