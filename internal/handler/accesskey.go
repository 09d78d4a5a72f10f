package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/platerelay/platerelay/internal/auth"
	"github.com/platerelay/platerelay/internal/model"
	"github.com/platerelay/platerelay/internal/repository"
)

// AccessKeyHandler handles access key management endpoints.
type AccessKeyHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
}

// NewAccessKeyHandler creates a new AccessKeyHandler.
func NewAccessKeyHandler(logger *slog.Logger, repo *repository.Repository) *AccessKeyHandler {
	return &AccessKeyHandler{
		logger:     logger,
		repository: repo,
	}
}

// Create handles POST /api/v1/access-keys
func (h *AccessKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	// Parse request body
	var req model.AccessKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	// Validate scopes
	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeKeyError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: read, write, send, admin")
			return
		}
	}

	// Default to read scope if none provided
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	// Generate new key
	generatedKey, err := auth.GenerateAccessKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate access key", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate access key")
		return
	}

	// Create access key entity
	key := &model.AccessKey{
		ID:        ulid.Make().String(),
		KeyHash:   generatedKey.Hash,
		KeyPrefix: generatedKey.Prefix,
		Scopes:    req.Scopes,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	// Store in database
	if err := h.repository.CreateAccessKey(ctx, key); err != nil {
		h.logger.Error("failed to create access key", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create access key")
		return
	}

	h.logger.Info("access key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("created_by", authCtx.KeyID),
	)

	// Return response with plaintext key (shown once only!)
	response := model.AccessKeyCreateResponse{
		ID:        key.ID,
		Key:       generatedKey.Plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
	}

	writeJSON(w, http.StatusCreated, response)
}

// List handles GET /api/v1/access-keys
func (h *AccessKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keys, err := h.repository.ListAccessKeys(ctx)
	if err != nil {
		h.logger.Error("failed to list access keys", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list access keys")
		return
	}

	// Convert to response format (without secrets)
	responses := make([]model.AccessKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": responses})
}

// Revoke handles DELETE /api/v1/access-keys/{key_id}
func (h *AccessKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	key, err := h.repository.GetAccessKeyByID(ctx, keyID)
	if err != nil {
		// Return 404 for both not found and already revoked (security)
		writeKeyError(w, http.StatusNotFound, "KEY_NOT_FOUND", "Access key not found or already revoked")
		return
	}

	if key.IsRevoked() {
		writeKeyError(w, http.StatusNotFound, "KEY_NOT_FOUND", "Access key not found or already revoked")
		return
	}

	if err := h.repository.RevokeAccessKey(ctx, keyID); err != nil {
		h.logger.Error("failed to revoke access key", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke access key")
		return
	}

	h.logger.Info("access key revoked",
		slog.String("key_id", keyID),
		slog.String("revoked_by", authCtx.KeyID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Rotate handles POST /api/v1/access-keys/{key_id}/rotate
func (h *AccessKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	oldKey, err := h.repository.GetAccessKeyByID(ctx, keyID)
	if err != nil {
		writeKeyError(w, http.StatusNotFound, "KEY_NOT_FOUND", "Access key not found")
		return
	}

	if oldKey.IsRevoked() {
		writeKeyError(w, http.StatusNotFound, "KEY_NOT_FOUND", "Access key not found or already revoked")
		return
	}

	// Generate new key with same properties
	generatedKey, err := auth.GenerateAccessKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate access key", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate access key")
		return
	}

	now := time.Now()

	newKey := &model.AccessKey{
		ID:        ulid.Make().String(),
		KeyHash:   generatedKey.Hash,
		KeyPrefix: generatedKey.Prefix,
		Scopes:    oldKey.Scopes,
		Name:      oldKey.Name,
		CreatedAt: now,
	}

	// Create new key first
	if err := h.repository.CreateAccessKey(ctx, newKey); err != nil {
		h.logger.Error("failed to create rotated access key", slog.String("error", err.Error()))
		writeKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate access key")
		return
	}

	// Revoke old key
	if err := h.repository.RevokeAccessKey(ctx, oldKey.ID); err != nil {
		h.logger.Error("failed to revoke old access key during rotation", slog.String("error", err.Error()))
		// Continue - new key is already created
	}

	h.logger.Info("access key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("rotated_by", authCtx.KeyID),
	)

	response := model.AccessKeyRotateResponse{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: now,
		NewKey: model.AccessKeyCreateResponse{
			ID:        newKey.ID,
			Key:       generatedKey.Plaintext,
			Name:      newKey.Name,
			KeyPrefix: newKey.KeyPrefix,
			Scopes:    newKey.Scopes,
			CreatedAt: newKey.CreatedAt,
		},
	}

	writeJSON(w, http.StatusCreated, response)
}

// writeKeyError writes a JSON error response.
func writeKeyError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
