package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trueshuffle/internal/shared"
	"golang.org/x/oauth2"
)

// TokenRepository stores one [oauth2.Token] per user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Load returns the stored token for userID, wrapping [shared.ErrNotAuthenticated] when there is none.
func (r *TokenRepository) Load(ctx context.Context, userID string) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expires_at
		FROM tokens
		WHERE user_id = ?
	`

	var (
		token     oauth2.Token
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&token.AccessToken, &token.RefreshToken, &token.TokenType, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no token stored for user %s", shared.ErrNotAuthenticated, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	if expiresAt.Valid {
		token.Expiry = expiresAt.Time
	}
	return &token, nil
}

// Save upserts the token for userID. An empty refresh token keeps the stored one, since refresh
// responses may omit it.
func (r *TokenRepository) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrInvalidInput)
	}

	var expiresAt sql.NullTime
	if !token.Expiry.IsZero() {
		expiresAt = sql.NullTime{Time: token.Expiry, Valid: true}
	}
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	query := `
		INSERT INTO tokens (user_id, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN tokens.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, userID, token.AccessToken, token.RefreshToken, tokenType, expiresAt, time.Now()); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete removes the token for userID.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tokens WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
