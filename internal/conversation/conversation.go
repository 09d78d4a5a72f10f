// Package conversation tracks multi-step chat flows. A flow collects the
// inputs an operation needs (plate number, message text, confirmation)
// across several updates before the service layer executes it.
package conversation

import (
	"errors"
	"time"
)

// Kind identifies which operation a flow is collecting input for.
type Kind string

const (
	KindAddPlate     Kind = "add_plate"
	KindDeletePlate  Kind = "delete_plate"
	KindSendMessage  Kind = "send_message"
	KindShareContact Kind = "share_contact"
)

// State is the position of a flow within its lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingPlate
	StateAwaitingConfirmation
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPlate:
		return "awaiting_plate"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition indicates an input arriving in a state that
	// cannot accept it.
	ErrInvalidTransition = errors.New("invalid conversation transition")
	// ErrNoActiveFlow indicates input for a chat with no flow in
	// progress, or whose flow has idled out.
	ErrNoActiveFlow = errors.New("no active conversation flow")
)

// Flow is one in-progress operation for a single chat.
type Flow struct {
	ChatID    int64
	Kind      Kind
	State     State
	Plate     string
	Text      string
	StartedAt time.Time
	UpdatedAt time.Time
}

// ProvidePlate records the plate number (and, for send flows, the message
// text) and advances the flow. Adding a plate completes immediately; the
// remaining kinds require confirmation first.
func (f *Flow) ProvidePlate(number, text string) error {
	if f.State != StateAwaitingPlate {
		return ErrInvalidTransition
	}

	f.Plate = number
	f.Text = text

	if f.Kind == KindAddPlate {
		f.State = StateDone
	} else {
		f.State = StateAwaitingConfirmation
	}
	return nil
}

// Confirm completes a flow waiting on user confirmation.
func (f *Flow) Confirm() error {
	if f.State != StateAwaitingConfirmation {
		return ErrInvalidTransition
	}
	f.State = StateDone
	return nil
}

// Completed reports whether the flow has collected everything it needs.
func (f *Flow) Completed() bool {
	return f.State == StateDone
}
