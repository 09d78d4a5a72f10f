package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/platerelay/platerelay/internal/handler/dto"
	"github.com/platerelay/platerelay/internal/middleware"
	"github.com/platerelay/platerelay/internal/service"
)

// MessageHandler handles HTTP requests for the send workflow and inbox.
type MessageHandler struct {
	svc    *service.RelayService
	logger *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc *service.RelayService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		svc:    svc,
		logger: logger,
	}
}

// Send handles POST /api/v1/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_CHAT_ID", "chat_id is required")
		return
	}
	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TEXT", err.Error())
		return
	}

	result, err := h.svc.SendToPlate(r.Context(), req.ChatID, req.Plate, req.Text)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("message_relayed",
		"message_id", result.Message.ID,
		"attempts", result.Attempts,
	)

	writeJSON(w, http.StatusCreated, dto.ToMessageResponse(result.Message, result.Attempts))
}

// ShareContact handles POST /api/v1/messages/contact.
func (h *MessageHandler) ShareContact(w http.ResponseWriter, r *http.Request) {
	var req dto.ShareContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_CHAT_ID", "chat_id is required")
		return
	}

	result, err := h.svc.ShareContact(r.Context(), req.ChatID, req.Plate)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("contact_shared",
		"message_id", result.Message.ID,
		"attempts", result.Attempts,
	)

	writeJSON(w, http.StatusCreated, dto.ToMessageResponse(result.Message, result.Attempts))
}

// Inbox handles GET /api/v1/messages.
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDFromQuery(w, r)
	if !ok {
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.Inbox(r.Context(), chatID, limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToInboxResponse(entries))
}

// Quota handles GET /api/v1/quota.
func (h *MessageHandler) Quota(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDFromQuery(w, r)
	if !ok {
		return
	}

	remaining, err := h.svc.RemainingQuota(r.Context(), chatID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QuotaResponse{
		Remaining:  remaining,
		MaxPerHour: h.svc.MaxPerHour(),
	})
}
