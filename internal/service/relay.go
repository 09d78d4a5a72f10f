// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/platerelay/platerelay/internal/audit"
	"github.com/platerelay/platerelay/internal/cache"
	"github.com/platerelay/platerelay/internal/courier"
	"github.com/platerelay/platerelay/internal/metrics"
	"github.com/platerelay/platerelay/internal/model"
	"github.com/platerelay/platerelay/internal/ratelimit"
	"github.com/platerelay/platerelay/internal/repository"
)

// Service errors.
var (
	ErrUserNotRegistered = errors.New("user not registered")
	ErrInvalidPlate      = errors.New("invalid plate number")
	ErrPlateExists       = errors.New("plate already registered by this user")
	ErrPlateTaken        = errors.New("plate registered by another user")
	ErrPlateNotFound     = errors.New("plate not found")
	ErrSelfMessage       = errors.New("cannot message own plate")
	ErrEmptyMessage      = errors.New("message text is empty")
	ErrMessageTooLong    = errors.New("message text too long")
	ErrNoUsername        = errors.New("sender has no username to share")
	ErrRateLimited       = errors.New("rate limited")
)

// RateLimitedError carries the human-readable wait until the sender may
// try again. errors.Is matches it against ErrRateLimited.
type RateLimitedError struct {
	Wait string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, try again in %s", e.Wait)
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// PlatePlaceholder is substituted with the plate number in the configured
// message template.
const PlatePlaceholder = "{licence_plate}"

const maxMessageLength = 4000

// Store is the persistence surface the relay service needs. It is
// satisfied by *repository.Repository.
type Store interface {
	GetOrCreateUser(ctx context.Context, chatID int64, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
	UpdateUsername(ctx context.Context, id int64, username string) (*model.User, error)

	CreatePlate(ctx context.Context, plate *model.Plate) error
	GetPlateByNumber(ctx context.Context, number string) (*model.Plate, error)
	ListPlatesByOwner(ctx context.Context, userID int64) ([]*model.Plate, error)
	DeletePlateByOwnerAndNumber(ctx context.Context, userID int64, number string) error

	RecordMessage(ctx context.Context, senderID, recipientID, plateID int64, text string) (*model.Message, error)
	MessagesByRecipient(ctx context.Context, recipientID int64, limit int) ([]*model.InboxEntry, error)
}

// RelayService coordinates plate registration and the send workflow.
type RelayService struct {
	store    Store
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	courier  courier.Courier
	audit    *audit.Publisher
	template string
	metrics  metrics.Recorder
}

// NewRelayService creates a new RelayService. The audit publisher is
// optional; pass nil to disable delivery auditing.
func NewRelayService(store Store, c *cache.Cache, limiter *ratelimit.Limiter, cr courier.Courier, pub *audit.Publisher, template string, recorder metrics.Recorder) *RelayService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RelayService{
		store:    store,
		cache:    c,
		limiter:  limiter,
		courier:  cr,
		audit:    pub,
		template: template,
		metrics:  recorder,
	}
}

// MaxPerHour returns the configured per-sender send limit.
func (s *RelayService) MaxPerHour() int {
	return s.limiter.MaxPerHour()
}

// RegisterUser creates the user on first contact and keeps the username
// current on subsequent updates.
func (s *RelayService) RegisterUser(ctx context.Context, chatID int64, username string) (*model.User, error) {
	user, err := s.store.GetOrCreateUser(ctx, chatID, username)
	if err != nil {
		return nil, err
	}

	if username != "" && user.Username != username {
		updated, err := s.store.UpdateUsername(ctx, user.ID, username)
		if err != nil {
			// Stale username is tolerable, keep the user we have.
			return user, nil
		}
		user = updated
	}

	return user, nil
}

// AddPlate registers a plate number for the user behind chatID.
func (s *RelayService) AddPlate(ctx context.Context, chatID int64, number string) (*model.Plate, error) {
	user, err := s.resolveUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	normalized := model.NormalizePlate(number)
	if !model.ValidPlateNumber(normalized) {
		return nil, ErrInvalidPlate
	}

	plate := &model.Plate{
		UserID: user.ID,
		Number: normalized,
	}

	if err := s.store.CreatePlate(ctx, plate); err != nil {
		if errors.Is(err, repository.ErrPlateExists) {
			existing, lookupErr := s.store.GetPlateByNumber(ctx, normalized)
			if lookupErr == nil && existing.UserID == user.ID {
				return nil, ErrPlateExists
			}
			return nil, ErrPlateTaken
		}
		return nil, fmt.Errorf("create plate: %w", err)
	}

	s.metrics.IncPlateRegistered()

	// Clear any negative cache entry for the number.
	if s.cache != nil {
		_ = s.cache.DeletePlateOwner(ctx, normalized)
	}

	return plate, nil
}

// DeletePlate removes one of the user's plates.
func (s *RelayService) DeletePlate(ctx context.Context, chatID int64, number string) error {
	user, err := s.resolveUser(ctx, chatID)
	if err != nil {
		return err
	}

	normalized := model.NormalizePlate(number)
	if normalized == "" {
		return ErrInvalidPlate
	}

	if err := s.store.DeletePlateByOwnerAndNumber(ctx, user.ID, normalized); err != nil {
		if errors.Is(err, repository.ErrPlateNotFound) {
			return ErrPlateNotFound
		}
		return err
	}

	s.metrics.IncPlateDeleted()

	if s.cache != nil {
		_ = s.cache.DeletePlateOwner(ctx, normalized)
	}

	return nil
}

// ListPlates returns the user's registered plates.
func (s *RelayService) ListPlates(ctx context.Context, chatID int64) ([]*model.Plate, error) {
	user, err := s.resolveUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.store.ListPlatesByOwner(ctx, user.ID)
}

// SendResult describes a completed relay.
type SendResult struct {
	Message  *model.Message
	Attempts int
}

// SendToPlate relays an anonymous message to the owner of plateNumber.
// The admission check runs before delivery; the message is recorded only
// after the courier confirms delivery, so denied or failed sends never
// consume quota.
func (s *RelayService) SendToPlate(ctx context.Context, senderChatID int64, plateNumber, text string) (*SendResult, error) {
	sender, err := s.resolveUser(ctx, senderChatID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	owner, err := s.resolvePlateOwner(ctx, plateNumber)
	if err != nil {
		return nil, err
	}

	if owner.OwnerID == sender.ID {
		return nil, ErrSelfMessage
	}

	if err := s.admit(ctx, sender.ID); err != nil {
		return nil, err
	}

	composed := s.composeMessage(owner.Number, text)
	return s.deliverAndRecord(ctx, sender.ID, owner, composed, text)
}

// ShareContact reveals the sender's username to the plate owner. The
// confirmation step happens in the conversation layer; by the time this
// runs the sender has already agreed to give up anonymity. Shares are
// recorded and rate-limited exactly like anonymous messages.
func (s *RelayService) ShareContact(ctx context.Context, senderChatID int64, plateNumber string) (*SendResult, error) {
	sender, err := s.resolveUser(ctx, senderChatID)
	if err != nil {
		return nil, err
	}

	if sender.Username == "" {
		return nil, ErrNoUsername
	}

	owner, err := s.resolvePlateOwner(ctx, plateNumber)
	if err != nil {
		return nil, err
	}

	if owner.OwnerID == sender.ID {
		return nil, ErrSelfMessage
	}

	if err := s.admit(ctx, sender.ID); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("The sender shared their contact: @%s", sender.Username)
	composed := s.composeMessage(owner.Number, text)
	return s.deliverAndRecord(ctx, sender.ID, owner, composed, text)
}

// Inbox returns the most recent messages delivered to the user's plates.
func (s *RelayService) Inbox(ctx context.Context, chatID int64, limit int) ([]*model.InboxEntry, error) {
	user, err := s.resolveUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	return s.store.MessagesByRecipient(ctx, user.ID, limit)
}

// RemainingQuota returns how many sends the user has left this hour.
func (s *RelayService) RemainingQuota(ctx context.Context, chatID int64) (int, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Unregistered senders have the full quota ahead of them.
			return s.limiter.MaxPerHour(), nil
		}
		return 0, err
	}

	return s.limiter.Remaining(ctx, user.ID)
}

// CheckQuota runs the admission check without sending. It returns the wait
// description when the sender is currently over the limit.
func (s *RelayService) CheckQuota(ctx context.Context, chatID int64) (bool, string, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return true, "", nil
		}
		return false, "", err
	}

	return s.limiter.CanSend(ctx, user.ID)
}

func (s *RelayService) resolveUser(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}

// resolvePlateOwner resolves a plate number to its owner, cache first.
func (s *RelayService) resolvePlateOwner(ctx context.Context, number string) (*cache.PlateOwner, error) {
	normalized := model.NormalizePlate(number)
	if normalized == "" {
		return nil, ErrInvalidPlate
	}

	if s.cache != nil {
		cached, err := s.cache.GetPlateOwner(ctx, normalized)
		if err == nil {
			s.metrics.IncPlateCacheHit()
			return cached, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.IncPlateCacheMiss()
			if negative, _ := s.cache.IsNegativelyCached(ctx, normalized); negative {
				return nil, ErrPlateNotFound
			}
		}
		// Redis errors fall through to the database.
	}

	plate, err := s.store.GetPlateByNumber(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrPlateNotFound) {
			if s.cache != nil {
				_ = s.cache.SetNegativeCache(ctx, normalized)
			}
			return nil, ErrPlateNotFound
		}
		return nil, err
	}

	ownerUser, err := s.store.GetUserByID(ctx, plate.UserID)
	if err != nil {
		return nil, err
	}

	owner := &cache.PlateOwner{
		PlateID:     plate.ID,
		Number:      plate.Number,
		OwnerID:     ownerUser.ID,
		OwnerChatID: ownerUser.ChatID,
	}

	if s.cache != nil {
		_ = s.cache.SetPlateOwner(ctx, owner)
	}

	return owner, nil
}

// admit runs the sliding-window admission check. Store failures deny the
// send and propagate.
func (s *RelayService) admit(ctx context.Context, senderID int64) error {
	start := time.Now()
	allowed, wait, err := s.limiter.CanSend(ctx, senderID)
	s.metrics.ObserveAdmissionDuration(time.Since(start))

	if err != nil {
		return err
	}
	if !allowed {
		s.metrics.IncSendDenied()
		return &RateLimitedError{Wait: wait}
	}

	s.metrics.IncSendAllowed()
	return nil
}

// deliverAndRecord delivers the composed text and records the message once
// the courier confirms.
func (s *RelayService) deliverAndRecord(ctx context.Context, senderID int64, owner *cache.PlateOwner, composed, recordedText string) (*SendResult, error) {
	deliveryID := ulid.Make().String()

	start := time.Now()
	result, err := s.courier.Deliver(ctx, courier.Delivery{
		DeliveryID:      deliveryID,
		RecipientChatID: owner.OwnerChatID,
		Text:            composed,
	})
	if err != nil {
		s.metrics.IncDelivery(model.DeliveryStatusFailed)
		s.publishAudit(deliveryID, 0, owner.OwnerChatID, model.DeliveryStatusFailed, 0, time.Since(start))
		return nil, fmt.Errorf("deliver message: %w", err)
	}

	s.metrics.IncDelivery(model.DeliveryStatusDelivered)
	s.metrics.ObserveDeliveryDuration(result.Latency)

	msg, err := s.store.RecordMessage(ctx, senderID, owner.OwnerID, owner.PlateID, recordedText)
	if err != nil {
		// Delivered but not recorded: surface the store failure, the
		// sender keeps quota headroom it technically spent.
		s.publishAudit(deliveryID, 0, owner.OwnerChatID, model.DeliveryStatusDelivered, result.Attempts, result.Latency)
		return nil, err
	}

	s.publishAudit(deliveryID, msg.ID, owner.OwnerChatID, model.DeliveryStatusDelivered, result.Attempts, result.Latency)

	return &SendResult{Message: msg, Attempts: result.Attempts}, nil
}

func (s *RelayService) publishAudit(deliveryID string, messageID, recipientChatID int64, status string, attempts int, latency time.Duration) {
	if s.audit == nil {
		return
	}
	if attempts <= 0 {
		attempts = 1
	}
	s.audit.PublishAsync(audit.DeliveryEventPayload{
		DeliveryID:      deliveryID,
		MessageID:       messageID,
		RecipientChatID: recipientChatID,
		Status:          status,
		Attempts:        attempts,
		LatencyMs:       latency.Milliseconds(),
		OccurredAt:      time.Now().UnixMilli(),
	})
}

// composeMessage renders the owner-facing text from the configured
// template. The template announces which plate the message concerns.
func (s *RelayService) composeMessage(plateNumber, text string) string {
	header := strings.ReplaceAll(s.template, PlatePlaceholder, plateNumber)
	if header == "" {
		return text
	}
	return header + "\n\n" + text
}
