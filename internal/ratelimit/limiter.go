// Package ratelimit implements the per-sender sliding-window send policy.
// The limiter is pure policy: it reads message history through the
// MessageStore interface and never writes.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platerelay/platerelay/internal/model"
)

// Window is the trailing interval over which sends are counted.
const Window = time.Hour

// ErrInvalidLimit indicates a non-positive per-hour limit.
var ErrInvalidLimit = errors.New("max messages per hour must be positive")

// MessageStore is the read surface the limiter needs. RecentMessagesBySender
// must return messages newest first.
type MessageStore interface {
	CountMessagesSince(ctx context.Context, senderID int64, cutoff time.Time) (int, error)
	RecentMessagesBySender(ctx context.Context, senderID int64, limit int) ([]*model.Message, error)
}

// Limiter decides whether a sender may relay another message.
type Limiter struct {
	store      MessageStore
	maxPerHour int
	now        func() time.Time
}

// New creates a Limiter using the wall clock.
func New(store MessageStore, maxPerHour int) (*Limiter, error) {
	return NewWithClock(store, maxPerHour, time.Now)
}

// NewWithClock creates a Limiter with an injected clock for tests.
func NewWithClock(store MessageStore, maxPerHour int, now func() time.Time) (*Limiter, error) {
	if maxPerHour <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, maxPerHour)
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, maxPerHour: maxPerHour, now: now}, nil
}

// MaxPerHour returns the configured per-sender limit.
func (l *Limiter) MaxPerHour() int {
	return l.maxPerHour
}

// CanSend reports whether senderID may send now. When denied, wait holds a
// human-readable duration until the oldest counted message leaves the
// window, e.g. "35 minutes" or "10 seconds". A store failure denies the
// send and propagates the error.
func (l *Limiter) CanSend(ctx context.Context, senderID int64) (bool, string, error) {
	now := l.now()

	count, err := l.store.CountMessagesSince(ctx, senderID, now.Add(-Window))
	if err != nil {
		return false, "", fmt.Errorf("count messages: %w", err)
	}

	if count < l.maxPerHour {
		return true, "", nil
	}

	recent, err := l.store.RecentMessagesBySender(ctx, senderID, l.maxPerHour)
	if err != nil {
		return false, "", fmt.Errorf("recent messages: %w", err)
	}
	if len(recent) == 0 {
		// Count said the window is full but the page came back empty.
		// Deny with a zero wait rather than guessing.
		return false, "0 minutes", nil
	}

	oldest := recent[len(recent)-1]
	reset := oldest.SentAt.Add(Window)

	return false, describeWait(reset.Sub(now)), nil
}

// Remaining returns how many sends senderID has left in the current window,
// never negative.
func (l *Limiter) Remaining(ctx context.Context, senderID int64) (int, error) {
	count, err := l.store.CountMessagesSince(ctx, senderID, l.now().Add(-Window))
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}

	remaining := l.maxPerHour - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// describeWait renders a remaining duration as whole minutes when at least
// one minute remains, otherwise whole seconds. Durations at or below zero
// render as "0 minutes".
func describeWait(remaining time.Duration) string {
	if remaining <= 0 {
		return "0 minutes"
	}
	if remaining >= time.Minute {
		return plural(int(remaining/time.Minute), "minute")
	}
	return plural(int(remaining/time.Second), "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
