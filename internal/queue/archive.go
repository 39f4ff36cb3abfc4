// Package queue provides the SQS-based archive path: completed optimization
// runs are published after the response is sent and persisted by a separate
// worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"voltsite/internal/config"
	"voltsite/internal/types"
)

// SQSClient abstracts the SQS operations used here for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// ArchiveMessage is the wire format for one completed run.
type ArchiveMessage struct {
	MessageID         string                 `json:"message_id"`
	RequestID         string                 `json:"request_id"`
	Location          string                 `json:"location"`
	StationType       types.StationType      `json:"station_type"`
	RadiusKM          int                    `json:"radius_km"`
	Budget            int                    `json:"budget"`
	Recommendations   []types.Recommendation `json:"recommendations"`
	ProcessingSeconds float64                `json:"processing_seconds"`
	CompletedAt       time.Time              `json:"completed_at"`
}

// ArchivePublisher sends completed runs to the archive queue. Publishing is
// fire-and-forget from the request path: failures are logged, never surfaced
// to the caller.
type ArchivePublisher struct {
	client   SQSClient
	queueURL string
	logger   *slog.Logger
}

// NewArchivePublisher creates a publisher for the configured archive queue.
// Returns nil when no queue URL is configured; callers treat a nil publisher
// as archiving disabled.
func NewArchivePublisher(client SQSClient, awsCfg config.AWSConfig, logger *slog.Logger) *ArchivePublisher {
	if awsCfg.ArchiveQueueURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchivePublisher{
		client:   client,
		queueURL: awsCfg.ArchiveQueueURL,
		logger:   logger,
	}
}

// Publish serializes the message and dispatches it to the archive queue.
func (p *ArchivePublisher) Publish(ctx context.Context, msg ArchiveMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			"failed to marshal archive message", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"request_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.RequestID),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to publish archive message for request %s", msg.RequestID), err)
	}

	p.logger.InfoContext(ctx, "archive message published",
		"request_id", msg.RequestID,
		"recommendations", len(msg.Recommendations),
	)
	return nil
}
