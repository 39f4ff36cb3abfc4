package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"voltsite/internal/store"
)

// RunSaver persists an archived run. Satisfied by *store.RunRepository.
type RunSaver interface {
	Save(ctx context.Context, run *store.StoredRun) error
}

// ArchiveConsumer drains the archive queue and persists each run. It is the
// core of the archiver worker binary.
type ArchiveConsumer struct {
	client   SQSClient
	queueURL string
	saver    RunSaver
	logger   *slog.Logger

	// WaitSeconds is the long-poll duration per receive call.
	WaitSeconds int32
	// BatchSize is the maximum number of messages per receive call.
	BatchSize int32
}

// NewArchiveConsumer creates a consumer for the configured archive queue.
func NewArchiveConsumer(client SQSClient, queueURL string, saver RunSaver, logger *slog.Logger) *ArchiveConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveConsumer{
		client:      client,
		queueURL:    queueURL,
		saver:       saver,
		logger:      logger,
		WaitSeconds: 20,
		BatchSize:   10,
	}
}

// Run polls until the context is canceled. Processing errors are logged and
// the message is left on the queue for redelivery; malformed messages are
// deleted so they cannot poison the queue.
func (c *ArchiveConsumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.BatchSize,
			WaitTimeSeconds:     c.WaitSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.ErrorContext(ctx, "receive from archive queue failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, raw := range out.Messages {
			c.handle(ctx, aws.ToString(raw.Body), aws.ToString(raw.ReceiptHandle))
		}
	}
}

func (c *ArchiveConsumer) handle(ctx context.Context, body, receipt string) {
	var msg ArchiveMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed archive message", "error", err)
		c.delete(ctx, receipt)
		return
	}

	run := &store.StoredRun{
		RequestID:         msg.RequestID,
		Location:          msg.Location,
		StationType:       msg.StationType,
		RadiusKM:          msg.RadiusKM,
		Budget:            msg.Budget,
		Recommendations:   msg.Recommendations,
		ProcessingSeconds: msg.ProcessingSeconds,
		CreatedAt:         msg.CompletedAt,
	}
	if err := c.saver.Save(ctx, run); err != nil {
		// Left on the queue; SQS redelivers after the visibility timeout.
		c.logger.ErrorContext(ctx, "failed to persist archived run",
			"request_id", msg.RequestID, "error", err)
		return
	}

	c.delete(ctx, receipt)
	c.logger.InfoContext(ctx, "archived run persisted", "request_id", msg.RequestID)
}

func (c *ArchiveConsumer) delete(ctx context.Context, receipt string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to delete archive message", "error", err)
	}
}
