// Package model defines domain entities for the application.
package model

import "time"

// Delivery outcome statuses.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// DeliveryEvent is one audit record of an outbound delivery attempt.
// Events flow through the audit stream and are batch-inserted into the
// delivery_log table; EventID (the stream entry id) is the idempotency key.
type DeliveryEvent struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	MessageID       int64     `json:"message_id"`
	RecipientChatID int64     `json:"recipient_chat_id"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	LatencyMs       int64     `json:"latency_ms"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// DeliveryDailyStat is the per-day aggregate over the delivery log.
type DeliveryDailyStat struct {
	Day          time.Time `json:"day"`
	Delivered    int64     `json:"delivered"`
	Failed       int64     `json:"failed"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	UpdatedAt    time.Time `json:"updated_at"`
}
