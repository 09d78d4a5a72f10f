package audit

import (
	"testing"
	"time"

	"github.com/platerelay/platerelay/internal/model"
)

func TestValidateDeliveryEventPayload(t *testing.T) {
	valid := DeliveryEventPayload{
		DeliveryID:      "01HV5K2J8",
		MessageID:       12,
		RecipientChatID: 4242,
		Status:          model.DeliveryStatusDelivered,
		Attempts:        1,
		LatencyMs:       150,
		OccurredAt:      time.Now().UnixMilli(),
	}

	if err := ValidateDeliveryEventPayload(valid); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(p *DeliveryEventPayload)
	}{
		{"missing_delivery_id", func(p *DeliveryEventPayload) { p.DeliveryID = "" }},
		{"negative_message_id", func(p *DeliveryEventPayload) { p.MessageID = -1 }},
		{"missing_recipient", func(p *DeliveryEventPayload) { p.RecipientChatID = 0 }},
		{"unknown_status", func(p *DeliveryEventPayload) { p.Status = "pending" }},
		{"zero_attempts", func(p *DeliveryEventPayload) { p.Attempts = 0 }},
		{"negative_latency", func(p *DeliveryEventPayload) { p.LatencyMs = -1 }},
		{"missing_occurred_at", func(p *DeliveryEventPayload) { p.OccurredAt = 0 }},
	}

	for _, tc := range cases {
		payload := valid
		tc.mutate(&payload)
		if err := ValidateDeliveryEventPayload(payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}

func TestValidateDeliveryEventPayload_FailedStatus(t *testing.T) {
	payload := DeliveryEventPayload{
		DeliveryID:      "01HV5K2J8",
		MessageID:       12,
		RecipientChatID: 4242,
		Status:          model.DeliveryStatusFailed,
		Attempts:        3,
		LatencyMs:       0,
		OccurredAt:      time.Now().UnixMilli(),
	}

	if err := ValidateDeliveryEventPayload(payload); err != nil {
		t.Fatalf("expected failed status to validate, got %v", err)
	}
}
