package audit

import (
	"fmt"

	"github.com/platerelay/platerelay/internal/model"
)

// ValidateDeliveryEventPayload validates delivery event payload fields.
func ValidateDeliveryEventPayload(payload DeliveryEventPayload) error {
	if payload.DeliveryID == "" {
		return fmt.Errorf("delivery_id is required")
	}
	// Failed deliveries carry no recorded message, so zero is allowed.
	if payload.MessageID < 0 {
		return fmt.Errorf("message_id must not be negative")
	}
	if payload.RecipientChatID == 0 {
		return fmt.Errorf("recipient_chat_id is required")
	}
	if payload.Status != model.DeliveryStatusDelivered && payload.Status != model.DeliveryStatusFailed {
		return fmt.Errorf("unknown status %q", payload.Status)
	}
	if payload.Attempts <= 0 {
		return fmt.Errorf("attempts must be positive")
	}
	if payload.LatencyMs < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
