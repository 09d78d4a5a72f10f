package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/platerelay/platerelay/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrChatIDExists = errors.New("chat id already registered")
)

// CreateUser inserts a new user into the database.
// ID and RegisteredAt are assigned by the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (chat_id, username)
		VALUES ($1, $2)
		RETURNING id, registered_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.ChatID,
		user.Username,
	).Scan(&user.ID, &user.RegisteredAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrChatIDExists
		}
		return wrapStoreErr("create user", err)
	}

	return nil
}

// GetUserByID retrieves a user by their database ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, chat_id, username, registered_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.ChatID,
		&user.Username,
		&user.RegisteredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr("get user by id", err)
	}

	return &user, nil
}

// GetUserByChatID retrieves a user by their external chat identity.
func (r *Repository) GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	query := `
		SELECT id, chat_id, username, registered_at
		FROM users
		WHERE chat_id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, chatID).Scan(
		&user.ID,
		&user.ChatID,
		&user.Username,
		&user.RegisteredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr("get user by chat id", err)
	}

	return &user, nil
}

// GetOrCreateUser gets a user by chat id or creates one if not found.
func (r *Repository) GetOrCreateUser(ctx context.Context, chatID int64, username string) (*model.User, error) {
	existing, err := r.GetUserByChatID(ctx, chatID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user := &model.User{ChatID: chatID, Username: username}
	if err := r.CreateUser(ctx, user); err != nil {
		// Handle race condition - another request may have created it
		if errors.Is(err, ErrChatIDExists) {
			return r.GetUserByChatID(ctx, chatID)
		}
		return nil, err
	}

	return user, nil
}

// UpdateUsername updates a user's display name.
func (r *Repository) UpdateUsername(ctx context.Context, id int64, username string) (*model.User, error) {
	query := `
		UPDATE users
		SET username = $2
		WHERE id = $1
		RETURNING id, chat_id, username, registered_at
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id, username).Scan(
		&user.ID,
		&user.ChatID,
		&user.Username,
		&user.RegisteredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr("update username", err)
	}

	return &user, nil
}

// DeleteUser removes a user and, via cascade, their plates and messages.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return wrapStoreErr("delete user", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
