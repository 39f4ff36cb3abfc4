// Package main is the entry point for the VoltSite API server.
//
// It loads configuration, wires the external lookup clients and the analysis
// pipeline, builds the HTTP server with the core chassis, and listens for
// requests. The optional collaborators (Gemini reasoning, Postgres store, SQS
// archive queue, CloudWatch metrics) are wired only when configured; the
// pipeline runs without any of them.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"voltsite/internal/api/handlers"
	"voltsite/internal/config"
	"voltsite/internal/core"
	"voltsite/internal/external"
	"voltsite/internal/llm"
	"voltsite/internal/metrics"
	"voltsite/internal/optimize"
	"voltsite/internal/pipeline"
	"voltsite/internal/queue"
	"voltsite/internal/stages"
	"voltsite/internal/store"
	"voltsite/internal/synth"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("voltsite API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	// External lookup clients share one transport with the configured timeout.
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.External.TimeoutSeconds) * time.Second,
	}
	nominatim := external.NewNominatimClient(httpClient, cfg.External.NominatimURL, cfg.External.UserAgent, logger)
	overpass := external.NewOverpassClient(httpClient, cfg.External.OverpassURL, cfg.External.UserAgent, logger)
	geonames := external.NewGeoNamesClient(httpClient, cfg.External.GeoNamesURL, cfg.External.GeoNamesUsername, cfg.External.UserAgent, logger)

	// Optional AWS-backed collaborators.
	var (
		stageMetrics   pipeline.MetricsRecorder = pipeline.NopMetrics{}
		requestMetrics optimize.RequestMetrics
		publisher      *queue.ArchivePublisher
	)
	if cfg.AWS.MetricsEnabled || cfg.AWS.ArchiveQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS configuration: %w", err)
		}
		if cfg.AWS.MetricsEnabled {
			cw := metrics.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricNamespace, logger)
			stageMetrics = cw
			requestMetrics = cw
		}
		publisher = queue.NewArchivePublisher(sqs.NewFromConfig(awsCfg), cfg.AWS, logger)
	}

	// Optional Gemini reasoner.
	var reasoner synth.Reasoner
	if cfg.LLM.APIKey != "" {
		gem, err := llm.NewGeminiReasoner(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger)
		if err != nil {
			logger.Warn("gemini reasoner unavailable, using canned reasoning", "error", err)
		} else {
			reasoner = gem
		}
	}

	// Analysis pipeline: fixed stage order, synthesis last.
	profiles := stages.DefaultProfiles()
	stageList := []pipeline.Stage{
		stages.NewTrafficStage(nominatim, overpass, cfg.Region, profiles, logger),
		stages.NewGridStage(nominatim, overpass, geonames, cfg.Region, cfg.Pipeline.QueryFanOut, logger),
		stages.NewCompetitorStage(nominatim, overpass, cfg.Region, logger),
		stages.NewDemographicStage(nominatim, overpass, geonames, cfg.Region, cfg.Pipeline.QueryFanOut, logger),
		stages.NewROIStage(logger),
		synth.NewSynthesizer(nominatim, reasoner, cfg.Region, cfg.Pipeline.Exploration, logger),
	}
	executor := pipeline.NewExecutor(stageList, pipeline.NewRunner(logger, stageMetrics), logger)

	service := optimize.NewService(executor, publisher, requestMetrics, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	optimizeHandler := handlers.NewOptimizeHandler(service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, optimizeHandler.RegisterRoutes)

	// Optional Postgres-backed run history.
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("creating database pool: %w", err)
		}
		defer pool.Close()

		historyHandler := handlers.NewHistoryHandler(store.NewRunRepository(pool), logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, historyHandler.RegisterRoutes)
		srv.HealthProbes = append(srv.HealthProbes, dbProbe{pool: pool})
	}

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// dbProbe checks database connectivity for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string                    { return "database" }
func (p dbProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + strconv.Itoa(cfg.Server.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
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

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
