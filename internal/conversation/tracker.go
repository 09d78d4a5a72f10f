package conversation

import (
	"context"
	"sync"
	"time"
)

// Tracker holds the active flow per chat. Flows idle past the TTL are
// dropped so abandoned conversations do not pin memory.
type Tracker struct {
	mu    sync.Mutex
	flows map[int64]*Flow
	ttl   time.Duration
	now   func() time.Time
}

// NewTracker creates a Tracker with the given idle TTL.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		flows: make(map[int64]*Flow),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Begin starts a new flow for chatID, replacing any existing one, and
// returns a snapshot of it.
func (t *Tracker) Begin(chatID int64, kind Kind) Flow {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	flow := &Flow{
		ChatID:    chatID,
		Kind:      kind,
		State:     StateAwaitingPlate,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.flows[chatID] = flow
	return *flow
}

// Get returns a snapshot of the active flow for chatID. Expired flows
// are dropped and reported as absent; a hit refreshes the idle timer.
// Flow state is only ever mutated under the tracker's lock, through
// ProvidePlate and Confirm, so a snapshot is all callers get.
func (t *Tracker) Get(chatID int64) (Flow, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flow, ok := t.activeLocked(chatID)
	if !ok {
		return Flow{}, false
	}

	flow.UpdatedAt = t.now()
	return *flow, true
}

// ProvidePlate feeds the plate number (and message text) into the
// active flow for chatID and returns a snapshot of the advanced flow.
func (t *Tracker) ProvidePlate(chatID int64, number, text string) (Flow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flow, ok := t.activeLocked(chatID)
	if !ok {
		return Flow{}, ErrNoActiveFlow
	}
	if err := flow.ProvidePlate(number, text); err != nil {
		return Flow{}, err
	}

	flow.UpdatedAt = t.now()
	return *flow, nil
}

// Confirm completes the active flow for chatID, if it is waiting on
// confirmation, and returns a snapshot of it.
func (t *Tracker) Confirm(chatID int64) (Flow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flow, ok := t.activeLocked(chatID)
	if !ok {
		return Flow{}, ErrNoActiveFlow
	}
	if err := flow.Confirm(); err != nil {
		return Flow{}, err
	}

	flow.UpdatedAt = t.now()
	return *flow, nil
}

// activeLocked returns the unexpired flow for chatID. Callers hold t.mu.
func (t *Tracker) activeLocked(chatID int64) (*Flow, bool) {
	flow, ok := t.flows[chatID]
	if !ok {
		return nil, false
	}
	if t.now().Sub(flow.UpdatedAt) > t.ttl {
		delete(t.flows, chatID)
		return nil, false
	}
	return flow, true
}

// End removes the flow for chatID, if any.
func (t *Tracker) End(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flows, chatID)
}

// Active returns the number of flows currently tracked.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}

// Sweep removes expired flows and returns how many were dropped.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	dropped := 0
	for chatID, flow := range t.flows {
		if now.Sub(flow.UpdatedAt) > t.ttl {
			delete(t.flows, chatID)
			dropped++
		}
	}
	return dropped
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}
