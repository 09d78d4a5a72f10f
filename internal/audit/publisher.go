// Package audit records delivery outcomes through a Redis stream so send
// latency never waits on the audit log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/platerelay/platerelay/internal/metrics"
)

const (
	// StreamKey is the Redis stream for delivery events.
	StreamKey = "stream:delivery_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:delivery_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// DeliveryEventPayload is the compressed event format for the Redis stream.
type DeliveryEventPayload struct {
	DeliveryID      string `json:"did"` // courier delivery id
	MessageID       int64  `json:"mid"` // recorded message id
	RecipientChatID int64  `json:"rc"`  // recipient chat id
	Status          string `json:"s"`   // "delivered" or "failed"
	Attempts        int    `json:"a"`   // delivery attempts
	LatencyMs       int64  `json:"l"`   // delivery latency
	OccurredAt      int64  `json:"t"`   // Unix milliseconds
}

// Publisher enqueues delivery events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds a delivery event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event DeliveryEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event DeliveryEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish delivery event",
				"delivery_id", event.DeliveryID,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("delivery event published",
			"delivery_id", event.DeliveryID,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}
