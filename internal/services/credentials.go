package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/transport"
	"golang.org/x/oauth2"
)

// TokenStore persists one token per user.
type TokenStore interface {
	Load(ctx context.Context, userID string) (*oauth2.Token, error)
	Save(ctx context.Context, userID string, token *oauth2.Token) error
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// CredentialStore hands out bearer tokens, refreshing them before they expire.
//
// It implements [Credentials] and [transport.Refresher]. Any failure to produce a usable token wraps
// [transport.ErrAuthExpired].
type CredentialStore struct {
	store  TokenStore
	auth   TokenRefresher
	margin time.Duration
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// NewCredentialStore creates a store refreshing tokens within margin of their expiry.
func NewCredentialStore(store TokenStore, auth TokenRefresher, margin time.Duration, logger *log.Logger) *CredentialStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CredentialStore{
		store:  store,
		auth:   auth,
		margin: margin,
		logger: logger,
		now:    time.Now,
		tokens: make(map[string]*oauth2.Token),
	}
}

// Bearer returns a valid access token for userID.
func (c *CredentialStore) Bearer(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.load(ctx, userID)
	if err != nil {
		return "", err
	}

	if !token.Expiry.IsZero() && !c.now().Add(c.margin).Before(token.Expiry) {
		if token, err = c.refresh(ctx, userID, token); err != nil {
			return "", err
		}
	}
	return token.AccessToken, nil
}

// Refresh forces a refresh for userID, e.g. after the remote answered 401.
func (c *CredentialStore) Refresh(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.load(ctx, userID)
	if err != nil {
		return err
	}
	_, err = c.refresh(ctx, userID, token)
	return err
}

// Store persists a freshly issued token, e.g. right after login.
func (c *CredentialStore) Store(ctx context.Context, userID string, token *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(ctx, userID, token); err != nil {
		return err
	}
	c.tokens[userID] = token
	return nil
}

func (c *CredentialStore) load(ctx context.Context, userID string) (*oauth2.Token, error) {
	if token, ok := c.tokens[userID]; ok {
		return token, nil
	}

	token, err := c.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrAuthExpired, err)
	}
	c.tokens[userID] = token
	return token, nil
}

func (c *CredentialStore) refresh(ctx context.Context, userID string, token *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := c.auth.Refresh(ctx, token)
	if err != nil {
		c.logger.Warn("token refresh failed", "user", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", transport.ErrAuthExpired, err)
	}

	if err := c.store.Save(ctx, userID, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	c.tokens[userID] = fresh
	c.logger.Debug("refreshed access token", "user", userID, "expires", fresh.Expiry)
	return fresh, nil
}
