package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
)

const userColumns = `id, sequence, spotify_user_id, display_name, created_at, updated_at`

// UserRepository persists [models.User] accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the account for user.SpotifyID or refreshes its display name, setting ID and sequence on user.
// A soft-deleted account is restored.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.SpotifyID == "" {
		return fmt.Errorf("validation failed: spotify user ID is required")
	}

	existing, err := r.one(ctx, `SELECT `+userColumns+` FROM users WHERE spotify_user_id = ?`, user.SpotifyID)
	switch {
	case err == nil:
		now := time.Now()
		query := `UPDATE users SET display_name = ?, updated_at = ?, deleted_at = NULL WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, query, user.DisplayName, now, existing.ID); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		user.ID = existing.ID
		user.Sequence = existing.Sequence
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = now
		return nil
	case !errors.Is(err, shared.ErrUserNotFound):
		return err
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	user.ID = shared.GenerateID()
	user.Sequence = sequence
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Sequence, user.SpotifyID, user.DisplayName, now, now); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`
	return r.one(ctx, query, id)
}

// GetBySpotifyID retrieves a user by Spotify user ID, excluding soft-deleted users
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE spotify_user_id = ? AND deleted_at IS NULL`
	return r.one(ctx, query, spotifyID)
}

// Latest returns the most recently logged-in user.
func (r *UserRepository) Latest(ctx context.Context) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY updated_at DESC, sequence DESC LIMIT 1`
	return r.one(ctx, query)
}

// List retrieves all users, excluding soft-deleted users
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

func (r *UserRepository) one(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Sequence, &user.SpotifyID, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
