// Package main is the entry point for the archiver worker. It drains the
// archive queue and persists completed optimization runs to Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"voltsite/internal/config"
	"voltsite/internal/queue"
	"voltsite/internal/store"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.AWS.ArchiveQueueURL == "" {
		return fmt.Errorf("ARCHIVE_QUEUE_URL must be set for the archiver worker")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL must be set for the archiver worker")
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("voltsite archiver starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"queue", cfg.AWS.ArchiveQueueURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	consumer := queue.NewArchiveConsumer(
		sqs.NewFromConfig(awsCfg),
		cfg.AWS.ArchiveQueueURL,
		store.NewRunRepository(pool),
		logger,
	)

	err = consumer.Run(ctx)
	logger.Info("archiver stopped")
	return err
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
