package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/server"
	"github.com/desertthunder/trueshuffle/internal/services"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds the wait for the browser callback.
const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow with PKCE.
//
// Starts a local HTTP server, opens the browser for user authorization, exchanges the code for tokens
// and stores them under the Spotify user ID of the account.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	auth, err := services.NewSpotifyAuth(r.config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("%w: set credentials.spotify.client_id in %s", err, r.configPath)
	}
	if err := r.open(); err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, auth)
	if err != nil {
		return err
	}

	client := services.NewSpotifyClient(services.StaticToken(token.AccessToken), r.httpClient)
	user, err := services.NewSpotifyLibrary(client).CurrentUser(ctx, "")
	if err != nil {
		return fmt.Errorf("%w: failed to fetch profile: %v", shared.ErrAuthFailed, err)
	}

	if err := r.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	creds := services.NewCredentialStore(r.tokens, auth, r.config.Transport.RefreshMargin.Duration, r.logger)
	if err := creds.Store(ctx, user.SpotifyID, token); err != nil {
		return err
	}

	r.logger.Info("authorized", "user", user.SpotifyID)
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Logged in as %s (%s)\n\n", displayName(user), user.SpotifyID)
	r.writePlain("You can now use: trueshuffle playlists\n")
	return nil
}

// AuthStatus reports the linked account and whether its access token is still fresh.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	r.writePlain("Account: %s (%s)\n", displayName(user), user.SpotifyID)

	token, err := r.tokens.Load(ctx, user.SpotifyID)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("Token:   ✗ none stored, run 'trueshuffle auth login'\n")
	}
	if err != nil {
		return err
	}

	switch {
	case token.Expiry.IsZero():
		r.writePlain("Token:   ✓ no expiry\n")
	case time.Until(token.Expiry) > 0:
		r.writePlain("Token:   ✓ valid until %s\n", token.Expiry.Local().Format(time.DateTime))
	case token.RefreshToken != "":
		r.writePlain("Token:   ⚠ expired, refreshed on next use\n")
	default:
		r.writePlain("Token:   ✗ expired, run 'trueshuffle auth login'\n")
	}
	return nil
}

// AuthLogout deletes the stored tokens and soft-deletes the account. Runs are kept.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	if err := r.tokens.Delete(ctx, user.SpotifyID); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	if err := r.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	r.logger.Info("logged out", "user", user.SpotifyID)
	return r.writePlain("✓ Logged out %s\n", user.SpotifyID)
}

func (r *Runner) currentUser(ctx context.Context, cmd *cli.Command) (*models.User, error) {
	if err := r.open(); err != nil {
		return nil, err
	}

	var (
		user *models.User
		err  error
	)
	if id := cmd.String("user"); id != "" {
		user, err = r.users.GetBySpotifyID(ctx, id)
	} else {
		user, err = r.users.Latest(ctx)
	}
	if errors.Is(err, shared.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: run 'trueshuffle auth login' first", shared.ErrNotAuthenticated)
	}
	return user, err
}

// doOAuth serves the callback route until the browser returns, the wait times out or ctx ends.
func (r *Runner) doOAuth(ctx context.Context, auth *services.SpotifyAuth) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	oauthHandler := server.NewOAuthHandler(auth, state, verifier)
	router := server.NewBasicRouter()
	router.Use(server.WithRecover(r.logger), server.WithLogging(r.logger))
	router.Handler(oauthHandler)

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := r.config.Server.Addr()
	r.logger.Infof("starting OAuth server at %v", addr)
	serverErrors := server.Serve(srvCtx, addr, router, r.logger)

	authURL := auth.AuthURL(state, verifier)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("server closed")
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

func displayName(user *models.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.SpotifyID
}
