package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/platerelay/platerelay/internal/model"
)

// Common errors for plate repository operations.
var (
	ErrPlateNotFound = errors.New("plate not found")
	ErrPlateExists   = errors.New("plate number already registered")
)

// CreatePlate inserts a new license plate for a user.
// The plate number must already be normalized.
func (r *Repository) CreatePlate(ctx context.Context, plate *model.Plate) error {
	query := `
		INSERT INTO plates (user_id, number)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		plate.UserID,
		plate.Number,
	).Scan(&plate.ID, &plate.CreatedAt, &plate.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrPlateExists
		}
		return wrapStoreErr("create plate", err)
	}

	return nil
}

// GetPlateByID retrieves a plate by its database ID.
func (r *Repository) GetPlateByID(ctx context.Context, id int64) (*model.Plate, error) {
	query := `
		SELECT id, user_id, number, created_at, updated_at
		FROM plates
		WHERE id = $1
	`

	return scanPlate(r.pool.QueryRow(ctx, query, id), "get plate by id")
}

// GetPlateByNumber retrieves a plate by its normalized number.
func (r *Repository) GetPlateByNumber(ctx context.Context, number string) (*model.Plate, error) {
	query := `
		SELECT id, user_id, number, created_at, updated_at
		FROM plates
		WHERE number = $1
	`

	return scanPlate(r.pool.QueryRow(ctx, query, number), "get plate by number")
}

// ListPlatesByOwner retrieves all plates for a user, newest first.
func (r *Repository) ListPlatesByOwner(ctx context.Context, userID int64) ([]*model.Plate, error) {
	query := `
		SELECT id, user_id, number, created_at, updated_at
		FROM plates
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, wrapStoreErr("list plates by owner", err)
	}
	defer rows.Close()

	var plates []*model.Plate
	for rows.Next() {
		var p model.Plate
		if err := rows.Scan(&p.ID, &p.UserID, &p.Number, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, wrapStoreErr("scan plate", err)
		}
		plates = append(plates, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate plates", err)
	}

	return plates, nil
}

// DeletePlate removes a plate by ID.
func (r *Repository) DeletePlate(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM plates WHERE id = $1", id)
	if err != nil {
		return wrapStoreErr("delete plate", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPlateNotFound
	}

	return nil
}

// DeletePlateByOwnerAndNumber removes a plate only if it belongs to the owner.
func (r *Repository) DeletePlateByOwnerAndNumber(ctx context.Context, userID int64, number string) error {
	query := `
		DELETE FROM plates
		WHERE user_id = $1 AND number = $2
	`

	result, err := r.pool.Exec(ctx, query, userID, number)
	if err != nil {
		return wrapStoreErr("delete plate by owner and number", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPlateNotFound
	}

	return nil
}

func scanPlate(row pgx.Row, op string) (*model.Plate, error) {
	var p model.Plate
	err := row.Scan(&p.ID, &p.UserID, &p.Number, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlateNotFound
		}
		return nil, wrapStoreErr(op, err)
	}
	return &p, nil
}
