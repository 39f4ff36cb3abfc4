// Package metrics emits pipeline telemetry to AWS CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"voltsite/internal/pipeline"
	"voltsite/internal/types"
)

// Metric and dimension names.
const (
	MetricStageExecution = "StageExecution"
	MetricStageLatency   = "StageLatency"
	MetricRequestLatency = "RequestLatency"

	DimStage  = "Stage"
	DimStatus = "Status"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics satisfies the pipeline's
// recorder interface.
var _ pipeline.MetricsRecorder = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics records stage and request telemetry to a CloudWatch
// namespace. Publish failures are logged and swallowed; telemetry never
// affects request handling.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a recorder publishing to the given namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordStage implements pipeline.MetricsRecorder. Each stage execution emits
// a count datum dimensioned by stage and status, plus a latency datum
// dimensioned by stage.
func (m *CloudWatchMetrics) RecordStage(ctx context.Context, stage string, status types.StageStatus, elapsed time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricStageExecution),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimStage), Value: aws.String(stage)},
					{Name: aws.String(DimStatus), Value: aws.String(string(status))},
				},
			},
			{
				MetricName: aws.String(MetricStageLatency),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimStage), Value: aws.String(stage)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Warn("failed to record stage metrics",
			"stage", stage,
			"status", string(status),
			"error", err,
		)
	}
}

// RecordRequest emits the end-to-end latency of one optimization request.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, elapsed time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricRequestLatency),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Warn("failed to record request metric", "error", err)
	}
}
