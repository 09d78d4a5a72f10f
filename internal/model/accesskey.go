// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Scope constants for access key authorization.
const (
	ScopeRead  = "read"  // list plates, read inbox and quota
	ScopeWrite = "write" // register and delete plates
	ScopeSend  = "send"  // relay messages to plate owners
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeSend, ScopeAdmin}

// AccessKey authenticates a transport adapter or operator client.
// The plaintext key is shown once at creation; only the Argon2id hash
// is stored. KeyPrefix is the short visible fragment used for lookup.
type AccessKey struct {
	ID         string     `json:"id"`
	KeyHash    string     `json:"-"` // never serialize
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *AccessKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *AccessKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	Scopes    []string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}

// AccessKeyResponse represents the response for an access key (no secrets).
type AccessKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

// ToResponse converts an AccessKey to AccessKeyResponse.
func (k *AccessKey) ToResponse() AccessKeyResponse {
	return AccessKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Scopes:     k.Scopes,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		Revoked:    k.IsRevoked(),
	}
}

// AccessKeyCreateRequest is the body for creating an access key.
type AccessKeyCreateRequest struct {
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// AccessKeyCreateResponse includes the plaintext key (shown only once).
type AccessKeyCreateResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"` // plaintext, display once only
	Name      string    `json:"name,omitempty"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessKeyRotateResponse reports a key rotation: the revoked key and its
// replacement, plaintext shown once.
type AccessKeyRotateResponse struct {
	OldKeyID        string                  `json:"old_key_id"`
	OldKeyRevokedAt time.Time               `json:"old_key_revoked_at"`
	NewKey          AccessKeyCreateResponse `json:"new_key"`
}
