package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pabraksas/pay-connector/internal/capture"
	"github.com/redis/go-redis/v9"
)

// CaptureStream is the stream holding capture work items.
const CaptureStream = "capture:queue"

// CaptureQueue is a Redis Streams backed capture queue. Each consumer reads
// through a consumer group; a message stays pending until acked, and pending
// messages idle past the visibility timeout are reclaimed by whichever
// consumer polls next. That reclaim is the queue-level retry the capture
// processor relies on.
type CaptureQueue struct {
	client            *redis.Client
	group             string
	consumer          string
	batchSize         int64
	blockDuration     time.Duration
	visibilityTimeout time.Duration
}

func NewCaptureQueue(
	client *redis.Client,
	group string,
	consumer string,
	batchSize int,
	blockDuration time.Duration,
	visibilityTimeout time.Duration,
) *CaptureQueue {
	return &CaptureQueue{
		client:            client,
		group:             group,
		consumer:          consumer,
		batchSize:         int64(batchSize),
		blockDuration:     blockDuration,
		visibilityTimeout: visibilityTimeout,
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (q *CaptureQueue) EnsureGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := q.client.XGroupCreateMkStream(ctx, CaptureStream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// AddChargeToQueue enqueues a charge for capture.
func (q *CaptureQueue) AddChargeToQueue(ctx context.Context, chargeExternalID string) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: CaptureStream,
		Values: map[string]any{
			"charge_external_id": chargeExternalID,
			"enqueued_at":        time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue capture: %w", err)
	}
	return nil
}

// Receive returns the next batch of work: first any messages whose previous
// delivery went unacked past the visibility timeout, then new messages,
// blocking up to the configured duration when the stream is empty.
func (q *CaptureQueue) Receive(ctx context.Context) ([]capture.Message, error) {
	reclaimed, err := q.reclaim(ctx)
	if err != nil {
		return nil, err
	}
	if int64(len(reclaimed)) >= q.batchSize {
		return reclaimed, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{CaptureStream, ">"},
		Count:    q.batchSize - int64(len(reclaimed)),
		Block:    q.blockDuration,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return reclaimed, nil
		}
		return nil, fmt.Errorf("failed to read from capture stream: %w", err)
	}

	messages := reclaimed
	for _, s := range streams {
		for _, m := range s.Messages {
			messages = append(messages, toMessage(m))
		}
	}
	return messages, nil
}

// reclaim picks up pending messages idle past the visibility timeout,
// transferring ownership to this consumer.
func (q *CaptureQueue) reclaim(ctx context.Context) ([]capture.Message, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   CaptureStream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.visibilityTimeout,
		Start:    "0-0",
		Count:    q.batchSize,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reclaim pending captures: %w", err)
	}

	var messages []capture.Message
	for _, m := range claimed {
		messages = append(messages, toMessage(m))
	}
	return messages, nil
}

// MarkProcessed acks a message so it is never redelivered.
func (q *CaptureQueue) MarkProcessed(ctx context.Context, m capture.Message) error {
	if err := q.client.XAck(ctx, CaptureStream, q.group, m.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack capture message: %w", err)
	}
	return nil
}

func toMessage(m redis.XMessage) capture.Message {
	externalID, _ := m.Values["charge_external_id"].(string)
	return capture.Message{ID: m.ID, ChargeExternalID: externalID}
}
