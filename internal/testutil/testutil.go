package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/platerelay/platerelay/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// TruncateAll empties every application table between tests. Assumes the
// goose migrations have already been applied to the test database.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `
		TRUNCATE
			delivery_daily_stats,
			delivery_log,
			messages,
			plates,
			access_keys,
			users
		RESTART IDENTITY CASCADE
	`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, chatID int64) *model.User {
	t.Helper()
	return &model.User{
		ChatID:       chatID,
		Username:     fmt.Sprintf("driver%d", chatID),
		RegisteredAt: time.Now().UTC(),
	}
}

// NewTestPlate creates a test plate owned by the given user id.
func NewTestPlate(t testing.TB, userID int64, number string) *model.Plate {
	t.Helper()
	now := time.Now().UTC()
	return &model.Plate{
		UserID:    userID,
		Number:    model.NormalizePlate(number),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAccessKey creates a test access key with sensible defaults.
func NewTestAccessKey(t testing.TB) *model.AccessKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.AccessKey{
		ID:        fmt.Sprintf("key-%d", now.UnixNano()),
		KeyHash:   fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix: "abc123",
		Scopes:    []string{model.ScopeRead, model.ScopeWrite},
		Name:      "Test Key",
		CreatedAt: now,
	}
}

// UniquePlate generates a unique plate number for tests.
func UniquePlate(prefix string) string {
	return model.NormalizePlate(fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1000000))
}

// UniqueChatID generates a unique chat id for tests.
func UniqueChatID() int64 {
	return time.Now().UnixNano() % 1_000_000_000
}
