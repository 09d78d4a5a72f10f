// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered vehicle owner.
// ChatID is the stable external identity assigned by the chat transport;
// it never changes once a user is created. Username is display-only and
// may be updated on subsequent contacts.
type User struct {
	ID           int64     `json:"id"`
	ChatID       int64     `json:"chat_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}
