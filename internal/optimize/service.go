// Package optimize orchestrates one site optimization request: it runs the
// analysis pipeline, shapes the response, and dispatches the completed run to
// the archive queue.
package optimize

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voltsite/internal/pipeline"
	"voltsite/internal/queue"
	"voltsite/internal/types"
)

// RequestMetrics receives end-to-end request telemetry. Satisfied by
// metrics.CloudWatchMetrics.
type RequestMetrics interface {
	RecordRequest(ctx context.Context, elapsed time.Duration)
}

// archiveTimeout bounds the fire-and-forget archive publish that happens
// after the response is prepared.
const archiveTimeout = 10 * time.Second

// Service runs optimization requests end to end.
type Service struct {
	executor  *pipeline.Executor
	publisher *queue.ArchivePublisher
	metrics   RequestMetrics
	logger    *slog.Logger
}

// NewService creates the orchestration service. publisher and metrics may be
// nil; archiving and telemetry are then disabled.
func NewService(
	executor *pipeline.Executor,
	publisher *queue.ArchivePublisher,
	metrics RequestMetrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		executor:  executor,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Optimize runs the pipeline for one validated request. It always returns a
// success-shaped response: stage failures surface only through the metadata
// error log and degraded data sources, never as an error here.
func (s *Service) Optimize(ctx context.Context, req types.OptimizeRequest) (*types.OptimizeResponse, error) {
	start := time.Now()

	requestID := types.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	state := types.NewWorkflowState(req)
	results := s.executor.Run(ctx, state)

	elapsed := time.Since(start)

	errors := state.Errors
	if errors == nil {
		errors = []string{}
	}

	resp := &types.OptimizeResponse{
		RequestID:             requestID,
		Recommendations:       state.Recommendations,
		ProcessingTimeSeconds: elapsed.Seconds(),
		Timestamp:             time.Now().UTC(),
		Metadata: types.ResponseMetadata{
			Errors:         errors,
			AgentsExecuted: results,
		},
	}

	if s.metrics != nil {
		s.metrics.RecordRequest(ctx, elapsed)
	}
	s.archive(req, resp)

	return resp, nil
}

// archive publishes the completed run asynchronously. The response has
// already been shaped; publish failures are logged and dropped.
func (s *Service) archive(req types.OptimizeRequest, resp *types.OptimizeResponse) {
	if s.publisher == nil {
		return
	}

	msg := queue.ArchiveMessage{
		RequestID:         resp.RequestID,
		Location:          req.Location,
		StationType:       req.StationType,
		RadiusKM:          req.RadiusKM,
		Budget:            req.Budget,
		Recommendations:   resp.Recommendations,
		ProcessingSeconds: resp.ProcessingTimeSeconds,
		CompletedAt:       resp.Timestamp,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Warn("archive publish failed",
				"request_id", msg.RequestID, "error", err)
		}
	}()
}
