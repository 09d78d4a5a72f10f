// Package model defines domain entities for the application.
package model

import "time"

// Message is one entry in the append-only log of relayed messages.
// Entries are never updated or deleted; SentAt is assigned by the
// database at insert time. The rate limiter derives every admission
// decision from this log.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	PlateID     int64     `json:"plate_id"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

// InboxEntry is a received message joined with the plate it referenced.
type InboxEntry struct {
	Message
	PlateNumber string `json:"plate_number"`
}
