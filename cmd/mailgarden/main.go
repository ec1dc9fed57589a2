package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gardenos/mailgarden/internal/config"
	"github.com/gardenos/mailgarden/internal/core"
	"github.com/gardenos/mailgarden/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	pipeline *core.Pipeline,
	source core.MailSource,
	llmClient core.LLMClient,
	store core.Store,
) error {
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
		return err
	}

	pipelineCfg, err := cfg.GetPipeline()
	if err != nil {
		logger.Fatal("Invalid pipeline configuration", zap.Error(err))
		return err
	}

	// Start the source if it is push-based (SMTP ingest)
	if starter, ok := source.(interface{ Start() error }); ok {
		if err := starter.Start(); err != nil {
			logger.Fatal("Failed to start mail source", zap.Error(err))
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Starting sync loop",
		zap.Duration("interval", pipelineCfg.SyncInterval),
		zap.Int("batch_size", pipelineCfg.BatchSize))

	ticker := time.NewTicker(pipelineCfg.SyncInterval)
	defer ticker.Stop()

	runCycle(ctx, pipeline, logger)

loop:
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, pipeline, logger)
		case <-sigCh:
			break loop
		}
	}

	logger.Info("Shutting down...")
	cancel()

	// Stop the source if it needs stopping
	if stopper, ok := source.(interface{ Stop() error }); ok {
		if err := stopper.Stop(); err != nil {
			logger.Error("Failed to stop mail source", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// runCycle drives one sync cycle, recovering the pipeline if the previous
// cycle left it in the error state.
func runCycle(ctx context.Context, pipeline *core.Pipeline, logger *zap.Logger) {
	if pipeline.State() == core.StateError {
		logger.Warn("Recovering pipeline from error state",
			zap.String("last_error", pipeline.LastError()))
		if err := pipeline.Reset(); err != nil {
			logger.Error("Failed to reset pipeline", zap.Error(err))
			return
		}
	}
	if err := pipeline.RunCycle(ctx); err != nil {
		logger.Error("Sync cycle failed", zap.Error(err))
	}
}
