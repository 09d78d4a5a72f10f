// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
	"unicode"
)

// Plate limits.
const (
	MinPlateLength = 2
	MaxPlateLength = 16
)

// Plate represents a license plate registered by a user.
// A plate number is globally unique: at most one owner at any moment.
type Plate struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizePlate canonicalizes a plate number for storage and lookup:
// trimmed, upper-cased, inner whitespace removed.
func NormalizePlate(number string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(number) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ValidPlateNumber reports whether a normalized plate number is acceptable:
// letters and digits only, within length bounds.
func ValidPlateNumber(number string) bool {
	if len(number) < MinPlateLength || len(number) > MaxPlateLength {
		return false
	}
	for _, r := range number {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
