// Package middleware provides HTTP middleware for the Platerelay API.
package middleware

import (
	"errors"
	"strings"
	"unicode"

	"github.com/platerelay/platerelay/internal/model"
)

// Validation limits.
const (
	// MaxMessageTextLength is the maximum length for a relayed message body.
	MaxMessageTextLength = 4000

	// MaxCourierURLLength is the maximum length for courier endpoint URLs.
	MaxCourierURLLength = 1024
)

// Validation errors.
var (
	ErrPlateTooLong    = errors.New("plate number exceeds maximum length")
	ErrPlateTooShort   = errors.New("plate number is too short")
	ErrPlateInvalid    = errors.New("plate number contains invalid characters")
	ErrTextEmpty       = errors.New("message text is empty")
	ErrTextTooLong     = errors.New("message text exceeds maximum length")
	ErrTextInvalid     = errors.New("message text contains control characters")
	ErrCourierTooLong  = errors.New("courier URL exceeds maximum length")
	ErrCourierInvalid  = errors.New("courier URL is invalid")
	ErrCourierUnsafe   = errors.New("courier URL uses unsafe scheme")
)

// ValidatePlateParam validates a plate number from a request payload.
// The number is normalized before length and character checks so that
// "ab 123 cd" and "AB123CD" validate identically.
func ValidatePlateParam(number string) error {
	normalized := model.NormalizePlate(number)
	if len(normalized) < model.MinPlateLength {
		return ErrPlateTooShort
	}
	if len(normalized) > model.MaxPlateLength {
		return ErrPlateTooLong
	}
	if !model.ValidPlateNumber(normalized) {
		return ErrPlateInvalid
	}
	return nil
}

// ValidateMessageText validates a message body from a request payload.
// Newlines and tabs are allowed; other control characters are not.
func ValidateMessageText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrTextEmpty
	}
	if len(trimmed) > MaxMessageTextLength {
		return ErrTextTooLong
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return ErrTextInvalid
		}
	}
	return nil
}

// ValidateCourierURL validates the configured courier endpoint URL.
func ValidateCourierURL(url string) error {
	if len(url) > MaxCourierURLLength {
		return ErrCourierTooLong
	}

	lowerURL := strings.ToLower(url)
	if !strings.HasPrefix(lowerURL, "http://") && !strings.HasPrefix(lowerURL, "https://") {
		return ErrCourierInvalid
	}

	// Block dangerous schemes (in case of URL encoding tricks)
	forbiddenSchemes := []string{"javascript:", "data:", "vbscript:", "file:"}
	for _, scheme := range forbiddenSchemes {
		if strings.Contains(lowerURL, scheme) {
			return ErrCourierUnsafe
		}
	}

	return nil
}
