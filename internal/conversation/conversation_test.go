package conversation

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFlow_AddPlateCompletesOnPlate(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	flow := tracker.Begin(100, KindAddPlate)

	if flow.State != StateAwaitingPlate {
		t.Fatalf("expected initial state awaiting_plate, got %s", flow.State)
	}

	if err := flow.ProvidePlate("AB123CD", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !flow.Completed() {
		t.Error("expected add-plate flow to complete after the plate arrives")
	}
	if flow.Plate != "AB123CD" {
		t.Errorf("expected plate AB123CD, got %q", flow.Plate)
	}
}

func TestFlow_SendMessageRequiresConfirmation(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	flow := tracker.Begin(100, KindSendMessage)

	if err := flow.ProvidePlate("AB123CD", "your lights are on"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if flow.State != StateAwaitingConfirmation {
		t.Fatalf("expected awaiting_confirmation, got %s", flow.State)
	}
	if flow.Completed() {
		t.Error("flow must not complete before confirmation")
	}

	if err := flow.Confirm(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flow.Completed() {
		t.Error("expected flow to complete after confirmation")
	}
	if flow.Text != "your lights are on" {
		t.Errorf("unexpected text %q", flow.Text)
	}
}

func TestFlow_InvalidTransitions(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	flow := tracker.Begin(100, KindDeletePlate)

	if err := flow.Confirm(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for early confirm, got %v", err)
	}

	if err := flow.ProvidePlate("AB123CD", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := flow.ProvidePlate("XY999Z", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for duplicate plate input, got %v", err)
	}

	if err := flow.Confirm(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := flow.Confirm(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for double confirm, got %v", err)
	}
}

func TestTracker_BeginReplacesExisting(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	tracker.Begin(100, KindAddPlate)
	flow := tracker.Begin(100, KindSendMessage)

	if flow.Kind != KindSendMessage {
		t.Fatalf("expected Begin to return the new flow, got kind %s", flow.Kind)
	}

	got, ok := tracker.Get(100)
	if !ok {
		t.Fatal("expected an active flow")
	}
	if got.Kind != KindSendMessage {
		t.Errorf("expected the later flow to win, got kind %s", got.Kind)
	}
	if tracker.Active() != 1 {
		t.Errorf("expected 1 active flow, got %d", tracker.Active())
	}
}

func TestTracker_ExpiryAndSweep(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Minute)
	tracker.now = func() time.Time { return current }

	tracker.Begin(100, KindAddPlate)
	tracker.Begin(200, KindSendMessage)

	current = current.Add(5 * time.Minute)
	if _, ok := tracker.Get(100); !ok {
		t.Fatal("expected flow 100 to still be active")
	}

	// Flow 100 was refreshed by the Get above; flow 200 has now idled out.
	current = current.Add(6 * time.Minute)
	if _, ok := tracker.Get(200); ok {
		t.Error("expected flow 200 to have expired")
	}
	if _, ok := tracker.Get(100); !ok {
		t.Error("expected flow 100 to survive its refresh")
	}

	current = current.Add(11 * time.Minute)
	if dropped := tracker.Sweep(); dropped != 1 {
		t.Errorf("expected sweep to drop 1 flow, got %d", dropped)
	}
	if tracker.Active() != 0 {
		t.Errorf("expected no active flows, got %d", tracker.Active())
	}
}

func TestTracker_ProvidePlateAndConfirm(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)

	if _, err := tracker.ProvidePlate(100, "AB123CD", ""); !errors.Is(err, ErrNoActiveFlow) {
		t.Errorf("expected ErrNoActiveFlow without a flow, got %v", err)
	}
	if _, err := tracker.Confirm(100); !errors.Is(err, ErrNoActiveFlow) {
		t.Errorf("expected ErrNoActiveFlow without a flow, got %v", err)
	}

	tracker.Begin(100, KindSendMessage)

	flow, err := tracker.ProvidePlate(100, "AB123CD", "your lights are on")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow.State != StateAwaitingConfirmation {
		t.Fatalf("expected awaiting_confirmation, got %s", flow.State)
	}

	flow, err = tracker.Confirm(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flow.Completed() {
		t.Error("expected flow to complete after confirmation")
	}
	if flow.Plate != "AB123CD" || flow.Text != "your lights are on" {
		t.Errorf("snapshot lost collected input: plate %q text %q", flow.Plate, flow.Text)
	}

	// Snapshots are copies; writing to one must not touch tracker state.
	flow.State = StateIdle
	got, ok := tracker.Get(100)
	if !ok || got.State != StateDone {
		t.Errorf("tracker state changed through a snapshot: %s", got.State)
	}
}

// Concurrent updates for the same chat must not corrupt flow state.
// Run with the race detector enabled.
func TestTracker_ConcurrentSameChatUpdates(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	tracker.Begin(100, KindSendMessage)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if flow, ok := tracker.Get(100); ok && flow.State == StateAwaitingPlate {
					_, _ = tracker.ProvidePlate(100, "AB123CD", "your lights are on")
				}
				_, _ = tracker.Confirm(100)
				tracker.Begin(100, KindSendMessage)
			}
		}()
	}
	wg.Wait()

	flow, ok := tracker.Get(100)
	if !ok {
		t.Fatal("expected an active flow after the storm")
	}
	switch flow.State {
	case StateAwaitingPlate, StateAwaitingConfirmation, StateDone:
	default:
		t.Errorf("flow left in unknown state %s", flow.State)
	}
}

func TestTracker_End(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(time.Minute)
	tracker.Begin(100, KindAddPlate)
	tracker.End(100)

	if _, ok := tracker.Get(100); ok {
		t.Error("expected no flow after End")
	}
}
