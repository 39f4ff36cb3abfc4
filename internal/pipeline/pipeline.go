// Package pipeline sequences the analysis stages for one optimization
// request. The stage order is a fixed linear list, deliberately not a graph:
// traffic, grid, competitor, demographic, roi, then synthesis. Each stage owns
// its failure handling; the executor only sequences and instruments.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voltsite/internal/types"
)

// Stage is one analysis step over the shared workflow state.
//
// Stages follow a strict containment contract: expected failures (geocoding
// misses, upstream timeouts, empty results) are handled inside Run by writing
// a fallback payload and appending to state.Errors, with a nil return. A
// non-nil error from Run signals an unexpected internal fault; the runner
// records it and the executor proceeds to the next stage regardless.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *types.WorkflowState) error
}

// MetricsRecorder receives per-stage telemetry. Implementations must be
// non-blocking; recording failures are never surfaced to the pipeline.
type MetricsRecorder interface {
	RecordStage(ctx context.Context, stage string, status types.StageStatus, elapsed time.Duration)
}

// NopMetrics is a MetricsRecorder that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordStage(context.Context, string, types.StageStatus, time.Duration) {}

// Runner wraps a stage execution with timing, panic containment, and
// structured result reporting, independent of the stage's internal logic.
type Runner struct {
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewRunner creates a stage runner.
func NewRunner(logger *slog.Logger, metrics MetricsRecorder) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Runner{logger: logger, metrics: metrics}
}

// Run executes one stage and returns its instrumentation record. Panics and
// returned errors are both converted into error-status results; neither
// escapes to the caller.
func (r *Runner) Run(ctx context.Context, stage Stage, state *types.WorkflowState) types.StageResult {
	start := time.Now()
	result := types.StageResult{
		StageName: stage.Name(),
		Status:    types.StageSuccess,
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				result.Status = types.StageError
				result.ErrorMessage = fmt.Sprintf("panic: %v", rec)
				state.AddError(fmt.Sprintf("%s failed: %v", stage.Name(), rec))
				r.logger.ErrorContext(ctx, "stage panicked",
					"stage", stage.Name(),
					"panic", fmt.Sprintf("%v", rec),
				)
			}
		}()
		if err := stage.Run(ctx, state); err != nil {
			result.Status = types.StageError
			result.ErrorMessage = err.Error()
			state.AddError(fmt.Sprintf("%s failed: %v", stage.Name(), err))
			r.logger.WarnContext(ctx, "stage reported fault",
				"stage", stage.Name(),
				"error", err,
			)
		}
	}()

	elapsed := time.Since(start)
	result.ElapsedSeconds = elapsed.Seconds()

	r.metrics.RecordStage(ctx, stage.Name(), result.Status, elapsed)
	r.logger.InfoContext(ctx, "stage finished",
		"stage", stage.Name(),
		"status", string(result.Status),
		"elapsed", elapsed,
	)

	return result
}

// Executor runs the fixed stage sequence over one shared state record.
type Executor struct {
	stages []Stage
	runner *Runner
	logger *slog.Logger
}

// NewExecutor creates an executor over the given ordered stage list.
// The order is significant: later stages (roi, synthesis) read the payloads
// written by earlier ones.
func NewExecutor(stages []Stage, runner *Runner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{stages: stages, runner: runner, logger: logger}
}

// Run threads the state through every stage in order and returns the per-stage
// instrumentation records. Stage failures never stop the sequence; only a
// fault in the executor itself ends the run early, in which case the state is
// returned as mutated so far with one appended error.
func (e *Executor) Run(ctx context.Context, state *types.WorkflowState) (results []types.StageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			state.AddError(fmt.Sprintf("pipeline aborted: %v", rec))
			e.logger.ErrorContext(ctx, "executor fault", "panic", fmt.Sprintf("%v", rec))
		}
	}()

	e.logger.InfoContext(ctx, "pipeline starting",
		"location", state.Location,
		"radius_km", state.RadiusKM,
		"stages", len(e.stages),
	)

	for _, stage := range e.stages {
		results = append(results, e.runner.Run(ctx, stage, state))
	}

	e.logger.InfoContext(ctx, "pipeline finished",
		"location", state.Location,
		"recommendations", len(state.Recommendations),
		"errors", len(state.Errors),
	)

	return results
}
