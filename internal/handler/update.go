package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/platerelay/platerelay/internal/conversation"
	"github.com/platerelay/platerelay/internal/courier"
	"github.com/platerelay/platerelay/internal/handler/dto"
	"github.com/platerelay/platerelay/internal/repository"
	"github.com/platerelay/platerelay/internal/service"
)

// Callback data values understood by the update handler.
const (
	callbackConfirm = "confirm"
	callbackCancel  = "cancel"
)

const helpText = "Commands:\n" +
	"/add - register a license plate\n" +
	"/delete - remove one of your plates\n" +
	"/plates - list your plates\n" +
	"/send - message a plate owner\n" +
	"/contact - share your contact with a plate owner\n" +
	"/inbox - recent messages you received\n" +
	"/quota - how many sends you have left this hour"

// UpdateHandler drives the conversation state machine from inbound
// chat updates. The transport adapter posts one update per user action
// and renders the returned reply.
type UpdateHandler struct {
	svc    *service.RelayService
	flows  *conversation.Tracker
	logger *slog.Logger
}

// NewUpdateHandler creates a new UpdateHandler.
func NewUpdateHandler(svc *service.RelayService, flows *conversation.Tracker, logger *slog.Logger) *UpdateHandler {
	return &UpdateHandler{
		svc:    svc,
		flows:  flows,
		logger: logger,
	}
}

// Handle handles POST /webhook/update.
func (h *UpdateHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_CHAT_ID", "chat_id is required")
		return
	}

	// Every update registers or refreshes the sender.
	if _, err := h.svc.RegisterUser(r.Context(), req.ChatID, req.Username); err != nil {
		h.logger.Error("register_user_failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Temporary failure. Try again later.")
		return
	}

	var resp dto.UpdateResponse
	if req.Callback != "" {
		resp = h.handleCallback(r, req)
	} else {
		resp = h.handleText(r, req)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleText dispatches a text update: commands start flows, plain text
// feeds the active flow.
func (h *UpdateHandler) handleText(r *http.Request, req dto.UpdateRequest) dto.UpdateResponse {
	text := strings.TrimSpace(req.Text)

	if strings.HasPrefix(text, "/") {
		return h.handleCommand(r, req.ChatID, text)
	}

	flow, ok := h.flows.Get(req.ChatID)
	if !ok {
		return reply(helpText)
	}

	return h.advanceFlow(r, flow, text)
}

// handleCommand starts or resets a conversation flow.
func (h *UpdateHandler) handleCommand(r *http.Request, chatID int64, text string) dto.UpdateResponse {
	command := text
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		command = text[:idx]
	}

	switch command {
	case "/start", "/help":
		h.flows.End(chatID)
		return reply("Welcome to Platerelay. Register your plate and reach other drivers anonymously.\n\n" + helpText)

	case "/add":
		h.flows.Begin(chatID, conversation.KindAddPlate)
		return reply("Send the plate number to register.")

	case "/delete":
		h.flows.Begin(chatID, conversation.KindDeletePlate)
		return reply("Send the plate number to remove.")

	case "/send":
		h.flows.Begin(chatID, conversation.KindSendMessage)
		return reply("Send the plate number followed by your message, e.g.\nAB123CD your lights are on")

	case "/contact":
		h.flows.Begin(chatID, conversation.KindShareContact)
		return reply("Send the plate number whose owner should receive your contact.")

	case "/plates":
		h.flows.End(chatID)
		return h.listPlates(r, chatID)

	case "/inbox":
		h.flows.End(chatID)
		return h.inbox(r, chatID)

	case "/quota":
		h.flows.End(chatID)
		return h.quota(r, chatID)

	default:
		return reply("Unknown command.\n\n" + helpText)
	}
}

// advanceFlow feeds user text into the active flow and executes it when
// the flow completes without a confirmation step. All flow mutation
// happens inside the tracker; the handler only ever sees snapshots.
func (h *UpdateHandler) advanceFlow(r *http.Request, flow conversation.Flow, text string) dto.UpdateResponse {
	plate := text
	var body string
	if flow.Kind == conversation.KindSendMessage {
		if idx := strings.IndexByte(text, ' '); idx > 0 {
			plate = text[:idx]
			body = strings.TrimSpace(text[idx+1:])
		} else {
			return reply("Please include both the plate number and the message, e.g.\nAB123CD your lights are on")
		}
	}

	updated, err := h.flows.ProvidePlate(flow.ChatID, plate, body)
	if err != nil {
		h.flows.End(flow.ChatID)
		return reply(helpText)
	}

	if updated.Completed() {
		defer h.flows.End(updated.ChatID)
		return h.executeFlow(r, updated)
	}

	return confirmPrompt(updated)
}

// handleCallback resolves a pending confirmation.
func (h *UpdateHandler) handleCallback(r *http.Request, req dto.UpdateRequest) dto.UpdateResponse {
	if _, ok := h.flows.Get(req.ChatID); !ok {
		return reply("Nothing to confirm. " + helpText)
	}

	switch req.Callback {
	case callbackCancel:
		h.flows.End(req.ChatID)
		return reply("Cancelled.")

	case callbackConfirm:
		flow, err := h.flows.Confirm(req.ChatID)
		if err != nil {
			h.flows.End(req.ChatID)
			return reply(helpText)
		}
		defer h.flows.End(req.ChatID)
		return h.executeFlow(r, flow)

	default:
		return reply("Unrecognized action.")
	}
}

// executeFlow runs the completed flow against the service.
func (h *UpdateHandler) executeFlow(r *http.Request, flow conversation.Flow) dto.UpdateResponse {
	ctx := r.Context()

	switch flow.Kind {
	case conversation.KindAddPlate:
		plate, err := h.svc.AddPlate(ctx, flow.ChatID, flow.Plate)
		if err != nil {
			return serviceErrorReply(h.logger, err)
		}
		return reply(fmt.Sprintf("Plate %s registered. You will receive messages left for it.", plate.Number))

	case conversation.KindDeletePlate:
		if err := h.svc.DeletePlate(ctx, flow.ChatID, flow.Plate); err != nil {
			return serviceErrorReply(h.logger, err)
		}
		return reply("Plate removed.")

	case conversation.KindSendMessage:
		if _, err := h.svc.SendToPlate(ctx, flow.ChatID, flow.Plate, flow.Text); err != nil {
			return serviceErrorReply(h.logger, err)
		}
		return h.sentReply(r, flow.ChatID)

	case conversation.KindShareContact:
		if _, err := h.svc.ShareContact(ctx, flow.ChatID, flow.Plate); err != nil {
			return serviceErrorReply(h.logger, err)
		}
		return h.sentReply(r, flow.ChatID)

	default:
		return reply(helpText)
	}
}

// sentReply confirms a delivery and reports the remaining quota.
func (h *UpdateHandler) sentReply(r *http.Request, chatID int64) dto.UpdateResponse {
	remaining, err := h.svc.RemainingQuota(r.Context(), chatID)
	if err != nil {
		return reply("Message delivered.")
	}
	return reply(fmt.Sprintf("Message delivered. You can send %d more message(s) this hour.", remaining))
}

// listPlates renders the /plates reply.
func (h *UpdateHandler) listPlates(r *http.Request, chatID int64) dto.UpdateResponse {
	plates, err := h.svc.ListPlates(r.Context(), chatID)
	if err != nil {
		return serviceErrorReply(h.logger, err)
	}
	if len(plates) == 0 {
		return reply("You have no registered plates. Use /add to register one.")
	}

	var b strings.Builder
	b.WriteString("Your plates:\n")
	for _, plate := range plates {
		b.WriteString("- ")
		b.WriteString(plate.Number)
		b.WriteByte('\n')
	}
	return reply(strings.TrimRight(b.String(), "\n"))
}

// inbox renders the /inbox reply.
func (h *UpdateHandler) inbox(r *http.Request, chatID int64) dto.UpdateResponse {
	entries, err := h.svc.Inbox(r.Context(), chatID, 10)
	if err != nil {
		return serviceErrorReply(h.logger, err)
	}
	if len(entries) == 0 {
		return reply("No messages yet.")
	}

	var b strings.Builder
	b.WriteString("Recent messages:\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", entry.PlateNumber, entry.Text)
	}
	return reply(strings.TrimRight(b.String(), "\n"))
}

// quota renders the /quota reply.
func (h *UpdateHandler) quota(r *http.Request, chatID int64) dto.UpdateResponse {
	remaining, err := h.svc.RemainingQuota(r.Context(), chatID)
	if err != nil {
		return serviceErrorReply(h.logger, err)
	}
	return reply(fmt.Sprintf("You can send %d more message(s) this hour (limit %d).", remaining, h.svc.MaxPerHour()))
}

// confirmPrompt asks the user to confirm a pending flow.
func confirmPrompt(flow conversation.Flow) dto.UpdateResponse {
	var prompt string
	switch flow.Kind {
	case conversation.KindDeletePlate:
		prompt = fmt.Sprintf("Remove plate %s?", flow.Plate)
	case conversation.KindSendMessage:
		prompt = fmt.Sprintf("Send to %s:\n%q?", flow.Plate, flow.Text)
	case conversation.KindShareContact:
		prompt = fmt.Sprintf("Share your contact with the owner of %s?", flow.Plate)
	default:
		prompt = "Confirm?"
	}
	return dto.UpdateResponse{
		Reply:   prompt,
		Buttons: []string{callbackConfirm, callbackCancel},
	}
}

// serviceErrorReply maps service errors to user-facing chat replies.
func serviceErrorReply(logger *slog.Logger, err error) dto.UpdateResponse {
	var limited *service.RateLimitedError

	switch {
	case errors.As(err, &limited):
		return reply("You reached the hourly limit. Try again in " + limited.Wait + ".")
	case errors.Is(err, service.ErrPlateNotFound):
		return reply("No owner is registered for that plate.")
	case errors.Is(err, service.ErrInvalidPlate):
		return reply("That does not look like a valid plate number.")
	case errors.Is(err, service.ErrPlateExists):
		return reply("You already registered that plate.")
	case errors.Is(err, service.ErrPlateTaken):
		return reply("That plate is registered to another user.")
	case errors.Is(err, service.ErrSelfMessage):
		return reply("That is your own plate.")
	case errors.Is(err, service.ErrEmptyMessage):
		return reply("The message is empty.")
	case errors.Is(err, service.ErrMessageTooLong):
		return reply("The message is too long.")
	case errors.Is(err, service.ErrNoUsername):
		return reply("You need a username before sharing your contact.")
	case errors.Is(err, courier.ErrDeliveryFailed):
		return reply("Could not deliver the message. Try again later.")
	case errors.Is(err, repository.ErrStoreUnavailable):
		return reply("Temporary failure. Try again later.")
	default:
		logger.Error("internal_error", "error", err)
		return reply("Something went wrong. Try again later.")
	}
}

// reply wraps a plain text reply.
func reply(text string) dto.UpdateResponse {
	return dto.UpdateResponse{Reply: text}
}
