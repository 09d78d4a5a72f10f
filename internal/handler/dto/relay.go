// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/platerelay/platerelay/internal/model"
)

// RegisterPlateRequest represents the request body for registering a plate.
type RegisterPlateRequest struct {
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`
	Number   string `json:"number"`
}

// SendMessageRequest represents the request body for relaying a message.
type SendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Plate  string `json:"plate"`
	Text   string `json:"text"`
}

// ShareContactRequest represents the request body for sharing a sender's
// contact with a plate owner.
type ShareContactRequest struct {
	ChatID int64  `json:"chat_id"`
	Plate  string `json:"plate"`
}

// PlateResponse represents a registered plate in API responses.
type PlateResponse struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

// PlateListResponse represents the plates registered by one user.
type PlateListResponse struct {
	Data []PlateResponse `json:"data"`
}

// MessageResponse represents a relayed message in API responses.
type MessageResponse struct {
	ID       int64     `json:"id"`
	Plate    string    `json:"plate,omitempty"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
	Attempts int       `json:"attempts,omitempty"`
}

// InboxResponse represents recently received messages.
type InboxResponse struct {
	Data []MessageResponse `json:"data"`
}

// QuotaResponse reports the sender's remaining hourly quota.
type QuotaResponse struct {
	Remaining  int `json:"remaining"`
	MaxPerHour int `json:"max_per_hour"`
}

// UpdateRequest is an inbound chat update from the transport adapter.
// Exactly one of Text or Callback is normally set.
type UpdateRequest struct {
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	Callback string `json:"callback,omitempty"`
}

// UpdateResponse is the reply the transport adapter should render.
type UpdateResponse struct {
	Reply   string   `json:"reply"`
	Buttons []string `json:"buttons,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Wait  string `json:"wait,omitempty"`
}

// ToPlateResponse converts a Plate model to PlateResponse DTO.
func ToPlateResponse(plate *model.Plate) *PlateResponse {
	return &PlateResponse{
		ID:        plate.ID,
		Number:    plate.Number,
		CreatedAt: plate.CreatedAt,
	}
}

// ToPlateListResponse converts a slice of Plate models to PlateListResponse.
func ToPlateListResponse(plates []*model.Plate) *PlateListResponse {
	responses := make([]PlateResponse, len(plates))
	for i, plate := range plates {
		responses[i] = *ToPlateResponse(plate)
	}
	return &PlateListResponse{Data: responses}
}

// ToMessageResponse converts a Message model to MessageResponse DTO.
func ToMessageResponse(msg *model.Message, attempts int) *MessageResponse {
	return &MessageResponse{
		ID:       msg.ID,
		Text:     msg.Text,
		SentAt:   msg.SentAt,
		Attempts: attempts,
	}
}

// ToInboxResponse converts inbox entries to InboxResponse.
func ToInboxResponse(entries []*model.InboxEntry) *InboxResponse {
	responses := make([]MessageResponse, len(entries))
	for i, entry := range entries {
		responses[i] = MessageResponse{
			ID:     entry.ID,
			Plate:  entry.PlateNumber,
			Text:   entry.Text,
			SentAt: entry.SentAt,
		}
	}
	return &InboxResponse{Data: responses}
}
