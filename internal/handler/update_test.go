package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/platerelay/platerelay/internal/conversation"
	"github.com/platerelay/platerelay/internal/courier"
	"github.com/platerelay/platerelay/internal/handler/dto"
	"github.com/platerelay/platerelay/internal/model"
	"github.com/platerelay/platerelay/internal/ratelimit"
	"github.com/platerelay/platerelay/internal/repository"
	"github.com/platerelay/platerelay/internal/service"
)

// memStore is an in-memory service.Store for handler tests. It also
// satisfies ratelimit.MessageStore.
type memStore struct {
	users    map[int64]*model.User
	plates   map[string]*model.Plate
	messages []*model.Message
	nextID   int64
	now      time.Time
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		users:  make(map[int64]*model.User),
		plates: make(map[string]*model.Plate),
		now:    now,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetOrCreateUser(_ context.Context, chatID int64, username string) (*model.User, error) {
	if user, ok := m.users[chatID]; ok {
		return user, nil
	}
	user := &model.User{ID: m.id(), ChatID: chatID, Username: username, RegisteredAt: m.now}
	m.users[chatID] = user
	return user, nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) GetUserByChatID(_ context.Context, chatID int64) (*model.User, error) {
	if user, ok := m.users[chatID]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) UpdateUsername(_ context.Context, id int64, username string) (*model.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			user.Username = username
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) CreatePlate(_ context.Context, plate *model.Plate) error {
	if _, ok := m.plates[plate.Number]; ok {
		return repository.ErrPlateExists
	}
	plate.ID = m.id()
	plate.CreatedAt = m.now
	plate.UpdatedAt = m.now
	m.plates[plate.Number] = plate
	return nil
}

func (m *memStore) GetPlateByNumber(_ context.Context, number string) (*model.Plate, error) {
	if plate, ok := m.plates[number]; ok {
		return plate, nil
	}
	return nil, repository.ErrPlateNotFound
}

func (m *memStore) ListPlatesByOwner(_ context.Context, userID int64) ([]*model.Plate, error) {
	var out []*model.Plate
	for _, plate := range m.plates {
		if plate.UserID == userID {
			out = append(out, plate)
		}
	}
	return out, nil
}

func (m *memStore) DeletePlateByOwnerAndNumber(_ context.Context, userID int64, number string) error {
	plate, ok := m.plates[number]
	if !ok || plate.UserID != userID {
		return repository.ErrPlateNotFound
	}
	delete(m.plates, number)
	return nil
}

func (m *memStore) RecordMessage(_ context.Context, senderID, recipientID, plateID int64, text string) (*model.Message, error) {
	msg := &model.Message{
		ID:          m.id(),
		SenderID:    senderID,
		RecipientID: recipientID,
		PlateID:     plateID,
		Text:        text,
		SentAt:      m.now,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) MessagesByRecipient(_ context.Context, recipientID int64, limit int) ([]*model.InboxEntry, error) {
	var out []*model.InboxEntry
	for _, msg := range m.messages {
		if msg.RecipientID == recipientID {
			entry := &model.InboxEntry{Message: *msg}
			for _, plate := range m.plates {
				if plate.ID == msg.PlateID {
					entry.PlateNumber = plate.Number
				}
			}
			out = append(out, entry)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountMessagesSince(_ context.Context, senderID int64, cutoff time.Time) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.SenderID == senderID && !msg.SentAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) RecentMessagesBySender(_ context.Context, senderID int64, limit int) ([]*model.Message, error) {
	var out []*model.Message
	for _, msg := range m.messages {
		if msg.SenderID == senderID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memCourier records deliveries in memory.
type memCourier struct {
	deliveries []courier.Delivery
	err        error
}

func (m *memCourier) Deliver(_ context.Context, d courier.Delivery) (*courier.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.deliveries = append(m.deliveries, d)
	return &courier.Result{Attempts: 1, StatusCode: 200, Latency: 5 * time.Millisecond}, nil
}

func newUpdateHarness(t *testing.T, maxPerHour int) (*UpdateHandler, *memStore, *memCourier) {
	t.Helper()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(now)
	cr := &memCourier{}

	limiter, err := ratelimit.NewWithClock(store, maxPerHour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := service.NewRelayService(store, nil, limiter, cr, nil,
		"Someone left a message about your vehicle {licence_plate}:", nil)
	flows := conversation.NewTracker(10 * time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewUpdateHandler(svc, flows, logger), store, cr
}

func postUpdate(t *testing.T, h *UpdateHandler, req dto.UpdateRequest) (int, dto.UpdateResponse) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodPost, "/webhook/update", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, httpReq)

	var resp dto.UpdateResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec.Code, resp
}

func TestUpdateHandler_AddPlateFlow(t *testing.T) {
	t.Parallel()

	h, store, _ := newUpdateHarness(t, 3)

	status, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Username: "alice", Text: "/add"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(resp.Reply, "plate number") {
		t.Errorf("expected plate prompt, got %q", resp.Reply)
	}

	_, resp = postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "ab 123 cd"})
	if !strings.Contains(resp.Reply, "AB123CD") {
		t.Errorf("expected registration confirmation, got %q", resp.Reply)
	}

	if _, ok := store.plates["AB123CD"]; !ok {
		t.Error("plate was not stored")
	}
}

func TestUpdateHandler_SendFlowWithConfirmation(t *testing.T) {
	t.Parallel()

	h, store, cr := newUpdateHarness(t, 3)

	// Owner registers their plate.
	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Username: "owner", Text: "/add"})
	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Text: "AB123CD"})

	// Sender starts the send flow.
	postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Username: "sender", Text: "/send"})
	_, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "AB123CD your lights are on"})

	if len(resp.Buttons) != 2 {
		t.Fatalf("expected confirm/cancel buttons, got %v", resp.Buttons)
	}
	if len(cr.deliveries) != 0 {
		t.Fatal("nothing should be delivered before confirmation")
	}

	_, resp = postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Callback: "confirm"})
	if !strings.Contains(resp.Reply, "delivered") {
		t.Errorf("expected delivery confirmation, got %q", resp.Reply)
	}

	if len(cr.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(cr.deliveries))
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(store.messages))
	}
	if store.messages[0].Text != "your lights are on" {
		t.Errorf("recorded text wrong: %q", store.messages[0].Text)
	}
}

func TestUpdateHandler_SendCancelled(t *testing.T) {
	t.Parallel()

	h, store, cr := newUpdateHarness(t, 3)

	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Username: "owner", Text: "/add"})
	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Text: "AB123CD"})

	postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Username: "sender", Text: "/send"})
	postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "AB123CD hello"})
	_, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Callback: "cancel"})

	if !strings.Contains(resp.Reply, "Cancelled") {
		t.Errorf("expected cancellation, got %q", resp.Reply)
	}
	if len(cr.deliveries) != 0 || len(store.messages) != 0 {
		t.Error("cancelled send must not deliver or record")
	}
}

func TestUpdateHandler_RateLimitedReplyCarriesWait(t *testing.T) {
	t.Parallel()

	h, store, _ := newUpdateHarness(t, 1)

	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Username: "owner", Text: "/add"})
	postUpdate(t, h, dto.UpdateRequest{ChatID: 200, Text: "AB123CD"})

	// Window already holds one send from 20 minutes ago.
	sender, _ := store.GetOrCreateUser(context.Background(), 100, "sender")
	owner := store.users[200]
	store.messages = append(store.messages, &model.Message{
		ID:          store.id(),
		SenderID:    sender.ID,
		RecipientID: owner.ID,
		PlateID:     store.plates["AB123CD"].ID,
		SentAt:      store.now.Add(-20 * time.Minute),
	})

	postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "/send"})
	postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "AB123CD hello again"})
	_, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Callback: "confirm"})

	if !strings.Contains(resp.Reply, "40 minutes") {
		t.Errorf("expected wait of 40 minutes in reply, got %q", resp.Reply)
	}
}

func TestUpdateHandler_QuotaCommand(t *testing.T) {
	t.Parallel()

	h, _, _ := newUpdateHarness(t, 3)

	_, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Username: "alice", Text: "/quota"})
	if !strings.Contains(resp.Reply, "3 more") {
		t.Errorf("expected full quota reply, got %q", resp.Reply)
	}
}

func TestUpdateHandler_PlainTextWithoutFlow(t *testing.T) {
	t.Parallel()

	h, _, _ := newUpdateHarness(t, 3)

	_, resp := postUpdate(t, h, dto.UpdateRequest{ChatID: 100, Text: "hello?"})
	if !strings.Contains(resp.Reply, "/add") {
		t.Errorf("expected help text, got %q", resp.Reply)
	}
}

func TestUpdateHandler_MissingChatID(t *testing.T) {
	t.Parallel()

	h, _, _ := newUpdateHarness(t, 3)

	status, _ := postUpdate(t, h, dto.UpdateRequest{Text: "/add"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}
