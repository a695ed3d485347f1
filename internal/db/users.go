package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/job-matcher/internal/types"
)

// User is an account that profiles and evaluations belong to.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// uniqueViolation is the PostgreSQL error code for a unique constraint failure.
const uniqueViolation = "23505"

// CreateUser inserts a user and returns its ID. A taken email yields
// *types.ErrEmailAlreadyExists.
func (db *DB) CreateUser(ctx context.Context, email, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id`,
		nullIfEmpty(email), name,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return uuid.Nil, &types.ErrEmailAlreadyExists{Email: email}
		}
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// GetUser retrieves a user by ID. It returns nil, nil when absent.
func (db *DB) GetUser(ctx context.Context, userID string) (*User, error) {
	id, ok := parseID(userID)
	if !ok {
		return nil, nil
	}

	var (
		u     User
		email *string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Email = derefString(email)
	return &u, nil
}

// DeleteUser removes a user with their profile and evaluations.
func (db *DB) DeleteUser(ctx context.Context, userID string) error {
	id, ok := parseID(userID)
	if !ok {
		return &types.ErrUserNotFound{UserID: userID}
	}
	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ErrUserNotFound{UserID: userID}
	}
	return nil
}
