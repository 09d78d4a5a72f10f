package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/platerelay/platerelay/internal/model"
)

// AdminPlateSearcher defines the interface for plate lookup operations.
type AdminPlateSearcher interface {
	GetPlateByNumber(ctx context.Context, number string) (*model.Plate, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListPlatesByOwner(ctx context.Context, userID int64) ([]*model.Plate, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
}

// AdminStatsLister defines the interface for delivery statistics.
type AdminStatsLister interface {
	ListDailyStats(ctx context.Context, days int) ([]*model.DeliveryDailyStat, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	plateRepo AdminPlateSearcher
	statsRepo AdminStatsLister
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(plateRepo AdminPlateSearcher, statsRepo AdminStatsLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		plateRepo: plateRepo,
		statsRepo: statsRepo,
		logger:    logger,
	}
}

// AdminPlateResponse represents a plate in admin context with owner info.
type AdminPlateResponse struct {
	ID            int64     `json:"id"`
	Number        string    `json:"number"`
	OwnerID       int64     `json:"owner_id"`
	OwnerChatID   int64     `json:"owner_chat_id"`
	OwnerUsername string    `json:"owner_username,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LookupPlate handles GET /api/v1/admin/plates?number={plate}
// Resolves a plate to its owner for support investigations.
func (h *AdminHandler) LookupPlate(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_NUMBER", "query parameter 'number' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	plate, err := h.plateRepo.GetPlateByNumber(ctx, model.NormalizePlate(number))
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, "PLATE_NOT_FOUND", "no plate matches")
		return
	}

	response := AdminPlateResponse{
		ID:        plate.ID,
		Number:    plate.Number,
		OwnerID:   plate.UserID,
		CreatedAt: plate.CreatedAt,
		UpdatedAt: plate.UpdatedAt,
	}

	if owner, err := h.plateRepo.GetUserByID(ctx, plate.UserID); err == nil {
		response.OwnerChatID = owner.ChatID
		response.OwnerUsername = owner.Username
	} else {
		h.logger.Error("failed to resolve plate owner",
			"error", err,
			"plate_id", plate.ID,
		)
	}

	writeJSON(w, http.StatusOK, response)
}

// AdminUserResponse represents a user and their plates in admin context.
type AdminUserResponse struct {
	ID           int64     `json:"id"`
	ChatID       int64     `json:"chat_id"`
	Username     string    `json:"username,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	Plates       []string  `json:"plates"`
}

// LookupUser handles GET /api/v1/admin/users?chat_id={id}
// Resolves a chat id to the registered user and their plates.
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("chat_id")
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_CHAT_ID", "query parameter 'chat_id' must be an integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.plateRepo.GetUserByChatID(ctx, chatID)
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, "USER_NOT_FOUND", "no user matches")
		return
	}

	response := AdminUserResponse{
		ID:           user.ID,
		ChatID:       user.ChatID,
		Username:     user.Username,
		RegisteredAt: user.RegisteredAt,
		Plates:       []string{},
	}

	if plates, err := h.plateRepo.ListPlatesByOwner(ctx, user.ID); err == nil {
		for _, plate := range plates {
			response.Plates = append(response.Plates, plate.Number)
		}
	} else {
		h.logger.Error("failed to list user plates",
			"error", err,
			"user_id", user.ID,
		)
	}

	writeJSON(w, http.StatusOK, response)
}

// DeliveryStatsResponse represents recent delivery aggregates.
type DeliveryStatsResponse struct {
	Stats []*model.DeliveryDailyStat `json:"stats"`
	Total int                        `json:"total"`
}

// DeliveryStats handles GET /api/v1/admin/delivery-stats?days={n}
// Returns per-day delivery aggregates, newest first.
func (h *AdminHandler) DeliveryStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 90 {
			days = parsed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.statsRepo.ListDailyStats(ctx, days)
	if err != nil {
		h.logger.Error("failed to list delivery stats", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list delivery stats")
		return
	}
	if stats == nil {
		stats = []*model.DeliveryDailyStat{}
	}

	writeJSON(w, http.StatusOK, DeliveryStatsResponse{
		Stats: stats,
		Total: len(stats),
	})
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
