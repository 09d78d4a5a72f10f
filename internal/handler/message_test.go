package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/platerelay/platerelay/internal/handler/dto"
)

func TestMessageAPI_SendAndRateLimit(t *testing.T) {
	t.Parallel()

	r, store, cr := newAPIHarness(t, 1)

	doJSON(t, r, http.MethodPost, "/api/v1/plates", dto.RegisterPlateRequest{
		ChatID: 200, Username: "owner", Number: "AB123CD",
	})

	rec := doJSON(t, r, http.MethodPost, "/api/v1/messages", dto.SendMessageRequest{
		ChatID: 100, Plate: "AB123CD", Text: "your lights are on",
	})
	if rec.Code != http.StatusNotFound {
		// Sender must exist first.
		t.Fatalf("expected 404 for unregistered sender, got %d", rec.Code)
	}

	// Register the sender, then send.
	if _, err := store.GetOrCreateUser(context.Background(), 100, "sender"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/messages", dto.SendMessageRequest{
		ChatID: 100, Plate: "AB123CD", Text: "your lights are on",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(cr.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(cr.deliveries))
	}

	// Second send within the hour is denied with a wait estimate.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/messages", dto.SendMessageRequest{
		ChatID: 100, Plate: "AB123CD", Text: "still on",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var errResp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %q", errResp.Code)
	}
	if errResp.Wait != "60 minutes" {
		t.Errorf("expected wait of 60 minutes, got %q", errResp.Wait)
	}
	if len(cr.deliveries) != 1 {
		t.Error("denied send must not reach the courier")
	}
}

func TestMessageAPI_Quota(t *testing.T) {
	t.Parallel()

	r, store, _ := newAPIHarness(t, 3)

	if _, err := store.GetOrCreateUser(context.Background(), 100, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(t, r, http.MethodGet, "/api/v1/quota?chat_id=100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var quota dto.QuotaResponse
	if err := json.NewDecoder(rec.Body).Decode(&quota); err != nil {
		t.Fatalf("decode quota: %v", err)
	}
	if quota.Remaining != 3 || quota.MaxPerHour != 3 {
		t.Errorf("expected 3/3, got %d/%d", quota.Remaining, quota.MaxPerHour)
	}
}
