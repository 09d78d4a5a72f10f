//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platerelay/platerelay/internal/model"
	"github.com/platerelay/platerelay/internal/testutil"
)

// ============================================================================
// User Repository Integration Tests
// ============================================================================

func TestIntegrationUserRepository_CreateUser(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueChatID())

	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("ID should be assigned on insert")
	}

	retrieved, err := repo.GetUserByChatID(ctx, user.ChatID)
	if err != nil {
		t.Fatalf("GetUserByChatID failed: %v", err)
	}
	if retrieved.Username != user.Username {
		t.Errorf("Username mismatch: got %q, want %q", retrieved.Username, user.Username)
	}
	if retrieved.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should be set")
	}
}

func TestIntegrationUserRepository_CreateUser_DuplicateChatID(t *testing.T) {
	ctx, repo := newTestEnv(t)

	chatID := testutil.UniqueChatID()
	if err := repo.CreateUser(ctx, testutil.NewTestUser(t, chatID)); err != nil {
		t.Fatalf("CreateUser (first) failed: %v", err)
	}

	err := repo.CreateUser(ctx, testutil.NewTestUser(t, chatID))
	if !errors.Is(err, ErrChatIDExists) {
		t.Errorf("Expected ErrChatIDExists, got: %v", err)
	}
}

func TestIntegrationUserRepository_GetUserByChatID_NotFound(t *testing.T) {
	ctx, repo := newTestEnv(t)

	_, err := repo.GetUserByChatID(ctx, -999999)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationUserRepository_GetOrCreateUser(t *testing.T) {
	ctx, repo := newTestEnv(t)

	chatID := testutil.UniqueChatID()

	created, err := repo.GetOrCreateUser(ctx, chatID, "first")
	if err != nil {
		t.Fatalf("GetOrCreateUser (create) failed: %v", err)
	}

	// Second call returns the same row and refreshes the username.
	again, err := repo.GetOrCreateUser(ctx, chatID, "renamed")
	if err != nil {
		t.Fatalf("GetOrCreateUser (get) failed: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("ID mismatch: got %d, want %d", again.ID, created.ID)
	}
	if again.Username != "renamed" {
		t.Errorf("Username not refreshed: got %q, want %q", again.Username, "renamed")
	}
}

// ============================================================================
// Plate Repository Integration Tests
// ============================================================================

func TestIntegrationPlateRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)

	owner := mustCreateUser(t, ctx, repo)
	number := testutil.UniquePlate("AB")
	plate := testutil.NewTestPlate(t, owner.ID, number)

	if err := repo.CreatePlate(ctx, plate); err != nil {
		t.Fatalf("CreatePlate failed: %v", err)
	}

	retrieved, err := repo.GetPlateByNumber(ctx, number)
	if err != nil {
		t.Fatalf("GetPlateByNumber failed: %v", err)
	}
	if retrieved.UserID != owner.ID {
		t.Errorf("UserID mismatch: got %d, want %d", retrieved.UserID, owner.ID)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestIntegrationPlateRepository_CreatePlate_Duplicate(t *testing.T) {
	ctx, repo := newTestEnv(t)

	owner := mustCreateUser(t, ctx, repo)
	other := mustCreateUser(t, ctx, repo)
	number := testutil.UniquePlate("DUP")

	if err := repo.CreatePlate(ctx, testutil.NewTestPlate(t, owner.ID, number)); err != nil {
		t.Fatalf("CreatePlate (first) failed: %v", err)
	}

	// Uniqueness is global, not per owner.
	err := repo.CreatePlate(ctx, testutil.NewTestPlate(t, other.ID, number))
	if !errors.Is(err, ErrPlateExists) {
		t.Errorf("Expected ErrPlateExists, got: %v", err)
	}
}

func TestIntegrationPlateRepository_ListPlatesByOwner(t *testing.T) {
	ctx, repo := newTestEnv(t)

	owner := mustCreateUser(t, ctx, repo)
	for i := 0; i < 3; i++ {
		if err := repo.CreatePlate(ctx, testutil.NewTestPlate(t, owner.ID, testutil.UniquePlate("LS"))); err != nil {
			t.Fatalf("CreatePlate failed: %v", err)
		}
	}

	plates, err := repo.ListPlatesByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListPlatesByOwner failed: %v", err)
	}
	if len(plates) != 3 {
		t.Errorf("Expected 3 plates, got %d", len(plates))
	}
}

func TestIntegrationPlateRepository_DeleteByOwnerAndNumber(t *testing.T) {
	ctx, repo := newTestEnv(t)

	owner := mustCreateUser(t, ctx, repo)
	stranger := mustCreateUser(t, ctx, repo)
	number := testutil.UniquePlate("DEL")

	if err := repo.CreatePlate(ctx, testutil.NewTestPlate(t, owner.ID, number)); err != nil {
		t.Fatalf("CreatePlate failed: %v", err)
	}

	// A non-owner cannot delete someone else's plate.
	err := repo.DeletePlateByOwnerAndNumber(ctx, stranger.ID, number)
	if !errors.Is(err, ErrPlateNotFound) {
		t.Errorf("Expected ErrPlateNotFound for non-owner, got: %v", err)
	}

	if err := repo.DeletePlateByOwnerAndNumber(ctx, owner.ID, number); err != nil {
		t.Fatalf("DeletePlateByOwnerAndNumber failed: %v", err)
	}

	_, err = repo.GetPlateByNumber(ctx, number)
	if !errors.Is(err, ErrPlateNotFound) {
		t.Errorf("Expected ErrPlateNotFound after delete, got: %v", err)
	}
}

// ============================================================================
// Message Repository Integration Tests
// ============================================================================

func TestIntegrationMessageRepository_RecordAndCount(t *testing.T) {
	ctx, repo := newTestEnv(t)

	sender := mustCreateUser(t, ctx, repo)
	owner := mustCreateUser(t, ctx, repo)
	plate := testutil.NewTestPlate(t, owner.ID, testutil.UniquePlate("MSG"))
	if err := repo.CreatePlate(ctx, plate); err != nil {
		t.Fatalf("CreatePlate failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		msg, err := repo.RecordMessage(ctx, sender.ID, owner.ID, plate.ID, "your lights are on")
		if err != nil {
			t.Fatalf("RecordMessage failed: %v", err)
		}
		if msg.SentAt.IsZero() {
			t.Error("SentAt should be assigned by the database")
		}
	}

	count, err := repo.CountMessagesSince(ctx, sender.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountMessagesSince failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	// A cutoff in the future excludes everything.
	count, err = repo.CountMessagesSince(ctx, sender.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountMessagesSince (future cutoff) failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0 with future cutoff, got %d", count)
	}
}

func TestIntegrationMessageRepository_RecentBySender_NewestFirst(t *testing.T) {
	ctx, repo := newTestEnv(t)

	sender := mustCreateUser(t, ctx, repo)
	owner := mustCreateUser(t, ctx, repo)
	plate := testutil.NewTestPlate(t, owner.ID, testutil.UniquePlate("ORD"))
	if err := repo.CreatePlate(ctx, plate); err != nil {
		t.Fatalf("CreatePlate failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := repo.RecordMessage(ctx, sender.ID, owner.ID, plate.ID, "msg"); err != nil {
			t.Fatalf("RecordMessage failed: %v", err)
		}
		time.Sleep(1 * time.Millisecond) // Ensure distinct sent_at
	}

	msgs, err := repo.RecentMessagesBySender(ctx, sender.ID, 3)
	if err != nil {
		t.Fatalf("RecentMessagesBySender failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].SentAt.After(msgs[i-1].SentAt) {
			t.Errorf("Messages not newest-first at index %d", i)
		}
	}
}

func TestIntegrationMessageRepository_Inbox(t *testing.T) {
	ctx, repo := newTestEnv(t)

	sender := mustCreateUser(t, ctx, repo)
	owner := mustCreateUser(t, ctx, repo)
	plate := testutil.NewTestPlate(t, owner.ID, testutil.UniquePlate("IN"))
	if err := repo.CreatePlate(ctx, plate); err != nil {
		t.Fatalf("CreatePlate failed: %v", err)
	}

	if _, err := repo.RecordMessage(ctx, sender.ID, owner.ID, plate.ID, "blocking the driveway"); err != nil {
		t.Fatalf("RecordMessage failed: %v", err)
	}

	entries, err := repo.MessagesByRecipient(ctx, owner.ID, 10)
	if err != nil {
		t.Fatalf("MessagesByRecipient failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 inbox entry, got %d", len(entries))
	}
	if entries[0].PlateNumber != plate.Number {
		t.Errorf("PlateNumber mismatch: got %q, want %q", entries[0].PlateNumber, plate.Number)
	}
	if entries[0].Text != "blocking the driveway" {
		t.Errorf("Text mismatch: got %q", entries[0].Text)
	}
}

// ============================================================================
// Access Key Repository Integration Tests
// ============================================================================

func TestIntegrationAccessKeyRepository_CreateAndLookup(t *testing.T) {
	ctx, repo := newTestEnv(t)

	key := testutil.NewTestAccessKey(t)

	if err := repo.CreateAccessKey(ctx, key); err != nil {
		t.Fatalf("CreateAccessKey failed: %v", err)
	}

	byPrefix, err := repo.GetAccessKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAccessKeysByPrefix failed: %v", err)
	}
	if len(byPrefix) != 1 {
		t.Fatalf("Expected 1 key for prefix, got %d", len(byPrefix))
	}
	if byPrefix[0].ID != key.ID {
		t.Errorf("ID mismatch: got %q, want %q", byPrefix[0].ID, key.ID)
	}
	if len(byPrefix[0].Scopes) != len(key.Scopes) {
		t.Errorf("Scopes length mismatch: got %d, want %d", len(byPrefix[0].Scopes), len(key.Scopes))
	}
}

func TestIntegrationAccessKeyRepository_Revoke(t *testing.T) {
	ctx, repo := newTestEnv(t)

	key := testutil.NewTestAccessKey(t)
	if err := repo.CreateAccessKey(ctx, key); err != nil {
		t.Fatalf("CreateAccessKey failed: %v", err)
	}

	if err := repo.RevokeAccessKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAccessKey failed: %v", err)
	}

	retrieved, err := repo.GetAccessKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAccessKeyByID failed: %v", err)
	}
	if !retrieved.IsRevoked() {
		t.Error("Key should be revoked")
	}

	// Revoking again reports not found.
	err = repo.RevokeAccessKey(ctx, key.ID)
	if !errors.Is(err, ErrAccessKeyNotFound) {
		t.Errorf("Expected ErrAccessKeyNotFound on double revoke, got: %v", err)
	}
}

func TestIntegrationAccessKeyRepository_UpdateLastUsed(t *testing.T) {
	ctx, repo := newTestEnv(t)

	key := testutil.NewTestAccessKey(t)
	if err := repo.CreateAccessKey(ctx, key); err != nil {
		t.Fatalf("CreateAccessKey failed: %v", err)
	}

	if err := repo.UpdateAccessKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAccessKeyLastUsed failed: %v", err)
	}

	retrieved, err := repo.GetAccessKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAccessKeyByID failed: %v", err)
	}
	if retrieved.LastUsedAt == nil {
		t.Error("LastUsedAt should be set")
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.TruncateAll(ctx, repo.Pool()); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return ctx, repo
}

func mustCreateUser(t *testing.T, ctx context.Context, repo *Repository) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, testutil.UniqueChatID())
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}
