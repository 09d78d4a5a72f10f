package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/platerelay/platerelay/internal/courier"
	"github.com/platerelay/platerelay/internal/handler/dto"
	"github.com/platerelay/platerelay/internal/repository"
	"github.com/platerelay/platerelay/internal/service"
)

// PlateHandler handles HTTP requests for plate operations.
type PlateHandler struct {
	svc    *service.RelayService
	logger *slog.Logger
}

// NewPlateHandler creates a new PlateHandler.
func NewPlateHandler(svc *service.RelayService, logger *slog.Logger) *PlateHandler {
	return &PlateHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/plates.
func (h *PlateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterPlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_CHAT_ID", "chat_id is required")
		return
	}

	if _, err := h.svc.RegisterUser(r.Context(), req.ChatID, req.Username); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	plate, err := h.svc.AddPlate(r.Context(), req.ChatID, req.Number)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("plate_registered",
		"plate_id", plate.ID,
		"number", plate.Number,
	)

	writeJSON(w, http.StatusCreated, dto.ToPlateResponse(plate))
}

// List handles GET /api/v1/plates.
func (h *PlateHandler) List(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDFromQuery(w, r)
	if !ok {
		return
	}

	plates, err := h.svc.ListPlates(r.Context(), chatID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPlateListResponse(plates))
}

// Delete handles DELETE /api/v1/plates/{number}.
func (h *PlateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "MISSING_NUMBER", "Plate number is required")
		return
	}

	chatID, ok := chatIDFromQuery(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeletePlate(r.Context(), chatID, number); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("plate_deleted", "number", number)

	w.WriteHeader(http.StatusNoContent)
}

// chatIDFromQuery extracts and validates the chat_id query parameter.
func chatIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("chat_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CHAT_ID", "chat_id is required")
		return 0, false
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_CHAT_ID", "chat_id must be a non-zero integer")
		return 0, false
	}
	return chatID, true
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var limited *service.RateLimitedError

	switch {
	case errors.As(err, &limited):
		writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
			Error: "Hourly message limit reached. Try again in " + limited.Wait + ".",
			Code:  "RATE_LIMITED",
			Wait:  limited.Wait,
		})
	case errors.Is(err, service.ErrUserNotRegistered):
		writeError(w, http.StatusNotFound, "USER_NOT_REGISTERED", "Sender is not registered")
	case errors.Is(err, service.ErrPlateNotFound):
		writeError(w, http.StatusNotFound, "PLATE_NOT_FOUND", "No owner registered for this plate")
	case errors.Is(err, service.ErrInvalidPlate):
		writeError(w, http.StatusBadRequest, "INVALID_PLATE", "Invalid plate number")
	case errors.Is(err, service.ErrPlateExists):
		writeError(w, http.StatusConflict, "PLATE_EXISTS", "You already registered this plate")
	case errors.Is(err, service.ErrPlateTaken):
		writeError(w, http.StatusConflict, "PLATE_TAKEN", "This plate is registered to another user")
	case errors.Is(err, service.ErrSelfMessage):
		writeError(w, http.StatusUnprocessableEntity, "SELF_MESSAGE", "Cannot send a message to your own plate")
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message text is empty")
	case errors.Is(err, service.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "MESSAGE_TOO_LONG", "Message text exceeds maximum length")
	case errors.Is(err, service.ErrNoUsername):
		writeError(w, http.StatusUnprocessableEntity, "NO_USERNAME", "Sender has no username to share")
	case errors.Is(err, courier.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "DELIVERY_FAILED", "Could not deliver the message. Try again later.")
	case errors.Is(err, repository.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Temporary failure. Try again later.")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
