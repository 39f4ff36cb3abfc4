package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"voltsite/internal/store"
)

type fakeSaver struct {
	saved []*store.StoredRun
	err   error
}

func (f *fakeSaver) Save(_ context.Context, run *store.StoredRun) error {
	f.saved = append(f.saved, run)
	return f.err
}

// scriptReceives returns the given batches one per call and cancels the
// context once they are exhausted, so Run terminates.
func scriptReceives(cancel context.CancelFunc, batches ...[]sqsTypes.Message) func(context.Context, *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	call := 0
	return func(ctx context.Context, _ *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
		if call >= len(batches) {
			cancel()
			return nil, ctx.Err()
		}
		out := &sqs.ReceiveMessageOutput{Messages: batches[call]}
		call++
		return out, nil
	}
}

func archiveBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(testArchiveMessage())
	if err != nil {
		t.Fatalf("marshal archive message: %v", err)
	}
	return string(body)
}

func TestArchiveConsumer_PersistsAndDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeSQS{}
	client.receiveFn = scriptReceives(cancel, []sqsTypes.Message{
		{Body: aws.String(archiveBody(t)), ReceiptHandle: aws.String("rh-1")},
	})

	saver := &fakeSaver{}
	c := NewArchiveConsumer(client, "https://sqs.test/archive", saver, slog.New(slog.DiscardHandler))

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if len(saver.saved) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(saver.saved))
	}
	run := saver.saved[0]
	if run.RequestID != "req-123" || run.Location != "Salem" {
		t.Errorf("saved run mismatch: %+v", run)
	}
	if run.RadiusKM != 50 || run.Budget != 5000000 {
		t.Errorf("saved run parameters mismatch: %+v", run)
	}
	if len(run.Recommendations) != 1 {
		t.Errorf("expected 1 recommendation on saved run, got %d", len(run.Recommendations))
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt from the message CompletedAt")
	}

	if len(client.deleteInputs) != 1 {
		t.Fatalf("expected 1 DeleteMessage call, got %d", len(client.deleteInputs))
	}
	if got := aws.ToString(client.deleteInputs[0].ReceiptHandle); got != "rh-1" {
		t.Errorf("deleted receipt = %q, want rh-1", got)
	}
}

func TestArchiveConsumer_DropsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeSQS{}
	client.receiveFn = scriptReceives(cancel, []sqsTypes.Message{
		{Body: aws.String("{not json"), ReceiptHandle: aws.String("rh-bad")},
	})

	saver := &fakeSaver{}
	c := NewArchiveConsumer(client, "https://sqs.test/archive", saver, slog.New(slog.DiscardHandler))

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if len(saver.saved) != 0 {
		t.Errorf("expected no save attempts for malformed message, got %d", len(saver.saved))
	}
	if len(client.deleteInputs) != 1 {
		t.Fatalf("expected malformed message to be deleted, got %d deletes", len(client.deleteInputs))
	}
	if got := aws.ToString(client.deleteInputs[0].ReceiptHandle); got != "rh-bad" {
		t.Errorf("deleted receipt = %q, want rh-bad", got)
	}
}

func TestArchiveConsumer_LeavesMessageOnSaveFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeSQS{}
	client.receiveFn = scriptReceives(cancel, []sqsTypes.Message{
		{Body: aws.String(archiveBody(t)), ReceiptHandle: aws.String("rh-1")},
	})

	saver := &fakeSaver{err: errors.New("db down")}
	c := NewArchiveConsumer(client, "https://sqs.test/archive", saver, slog.New(slog.DiscardHandler))

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if len(saver.saved) != 1 {
		t.Fatalf("expected 1 save attempt, got %d", len(saver.saved))
	}
	if len(client.deleteInputs) != 0 {
		t.Errorf("message must stay on the queue after save failure, got %d deletes", len(client.deleteInputs))
	}
}

func TestArchiveConsumer_StopsWhenContextAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeSQS{}
	c := NewArchiveConsumer(client, "https://sqs.test/archive", &fakeSaver{}, slog.New(slog.DiscardHandler))

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestArchiveConsumer_UsesConfiguredPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeSQS{}
	var gotInput *sqs.ReceiveMessageInput
	client.receiveFn = func(rctx context.Context, params *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
		gotInput = params
		cancel()
		return nil, rctx.Err()
	}

	c := NewArchiveConsumer(client, "https://sqs.test/archive", &fakeSaver{}, slog.New(slog.DiscardHandler))
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if gotInput == nil {
		t.Fatal("expected a ReceiveMessage call")
	}
	if got := aws.ToString(gotInput.QueueUrl); got != "https://sqs.test/archive" {
		t.Errorf("receive queue URL = %q", got)
	}
	if gotInput.WaitTimeSeconds != 20 {
		t.Errorf("WaitTimeSeconds = %d, want 20", gotInput.WaitTimeSeconds)
	}
	if gotInput.MaxNumberOfMessages != 10 {
		t.Errorf("MaxNumberOfMessages = %d, want 10", gotInput.MaxNumberOfMessages)
	}
}
