package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/trueshuffle/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyScopes are requested at login: playlist read/write for ingestion and shuffle copies,
// playback read/modify for the engine.
var SpotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// SpotifyAuth runs the OAuth2 authorization-code flow with PKCE against Spotify accounts.
type SpotifyAuth struct {
	config *oauth2.Config
}

// NewSpotifyAuth creates the OAuth2 configuration from the configured credentials.
// The client secret is optional; PKCE alone authenticates public clients.
func NewSpotifyAuth(creds shared.SpotifyConfig) (*SpotifyAuth, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	return &SpotifyAuth{config: &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}}, nil
}

// WithEndpoint replaces the accounts endpoints, e.g. with an httptest server.
func (a *SpotifyAuth) WithEndpoint(endpoint oauth2.Endpoint) *SpotifyAuth {
	a.config.Endpoint = endpoint
	return a
}

// RedirectURL returns the configured callback URL.
func (a *SpotifyAuth) RedirectURL() string {
	return a.config.RedirectURL
}

// AuthURL returns the consent page URL for state, carrying the S256 challenge of verifier.
func (a *SpotifyAuth) AuthURL(state, verifier string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token.
func (a *SpotifyAuth) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Refresh obtains a new access token from token's refresh token.
// The returned token keeps the old refresh token when Spotify does not rotate it.
func (a *SpotifyAuth) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	// Without an access token the source always goes to the token endpoint.
	stale := &oauth2.Token{RefreshToken: token.RefreshToken}

	fresh, err := a.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}
