package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/platerelay/platerelay/internal/model"
)

// Common errors for access key repository operations.
var (
	ErrAccessKeyNotFound = errors.New("access key not found")
)

// CreateAccessKey inserts a new access key into the database.
func (r *Repository) CreateAccessKey(ctx context.Context, key *model.AccessKey) error {
	query := `
		INSERT INTO access_keys (id, key_hash, key_prefix, scopes, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Scopes),
		key.Name,
		key.CreatedAt,
	)

	if err != nil {
		return wrapStoreErr("create access key", err)
	}

	return nil
}

// GetAccessKeyByID retrieves an access key by its ID.
func (r *Repository) GetAccessKeyByID(ctx context.Context, id string) (*model.AccessKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_keys
		WHERE id = $1
	`

	return scanAccessKey(r.pool.QueryRow(ctx, query, id))
}

// GetAccessKeysByPrefix retrieves all active access keys matching a prefix.
// Used during authentication to find candidate keys for verification.
func (r *Repository) GetAccessKeysByPrefix(ctx context.Context, prefix string) ([]*model.AccessKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, wrapStoreErr("get access keys by prefix", err)
	}
	defer rows.Close()

	var keys []*model.AccessKey
	for rows.Next() {
		key, err := scanAccessKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate access keys", err)
	}

	return keys, nil
}

// ListAccessKeys retrieves all access keys, newest first.
func (r *Repository) ListAccessKeys(ctx context.Context) ([]*model.AccessKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM access_keys
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapStoreErr("list access keys", err)
	}
	defer rows.Close()

	var keys []*model.AccessKey
	for rows.Next() {
		key, err := scanAccessKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate access keys", err)
	}

	return keys, nil
}

// RevokeAccessKey revokes an access key by setting revoked_at.
func (r *Repository) RevokeAccessKey(ctx context.Context, id string) error {
	query := `
		UPDATE access_keys
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return wrapStoreErr("revoke access key", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccessKeyNotFound
	}

	return nil
}

// UpdateAccessKeyLastUsed updates the last_used_at timestamp.
// Should be called asynchronously after successful authentication.
func (r *Repository) UpdateAccessKeyLastUsed(ctx context.Context, id string) error {
	query := `
		UPDATE access_keys
		SET last_used_at = $2
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, time.Now()); err != nil {
		return wrapStoreErr("update access key last used", err)
	}

	return nil
}

// scanAccessKey scans a single row into an AccessKey model.
func scanAccessKey(row pgx.Row) (*model.AccessKey, error) {
	var key model.AccessKey
	var scopes []string

	err := row.Scan(
		&key.ID,
		&key.KeyHash,
		&key.KeyPrefix,
		pq.Array(&scopes),
		&key.Name,
		&key.RevokedAt,
		&key.LastUsedAt,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccessKeyNotFound
		}
		return nil, wrapStoreErr("scan access key", err)
	}

	key.Scopes = scopes
	return &key, nil
}
