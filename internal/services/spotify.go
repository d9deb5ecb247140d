// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/trueshuffle/internal/transport"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// maxErrorBody bounds how much of an error reply is kept on a [transport.StatusError].
const maxErrorBody = 512

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track or episode as it appears in playlists and playback state.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"` // track, episode
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTotal struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists and metadata lookups).
type SpotifySimplePlaylist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Owner       Owner         `json:"owner"`
	Public      bool          `json:"public"`
	Tracks      playlistTotal `json:"tracks"`
	URI         string        `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

// SpotifyPlaylistItem represents an entry within a playlist. Track is nil for unavailable entries.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedItems represents a page of playlist entries.
type SpotifyPaginatedItems struct {
	Items []SpotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
	Next  *string               `json:"next"`
}

// SpotifyDevice represents a Spotify Connect device.
type SpotifyDevice struct {
	ID            *string `json:"id"`
	IsActive      bool    `json:"is_active"`
	IsRestricted  bool    `json:"is_restricted"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	VolumePercent *int    `json:"volume_percent"`
}

// SpotifyPlayerState represents the reply of GET /me/player.
type SpotifyPlayerState struct {
	Device               SpotifyDevice `json:"device"`
	ProgressMS           int           `json:"progress_ms"`
	IsPlaying            bool          `json:"is_playing"`
	Item                 *SpotifyTrack `json:"item"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
}

// SpotifyClient performs authenticated requests against the Spotify Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	now        func() time.Time
}

// NewSpotifyClient creates a client that authenticates every request with creds.
func NewSpotifyClient(creds Credentials, httpClient *http.Client) *SpotifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpotifyClient{
		baseURL:    spotifyBaseURL,
		httpClient: httpClient,
		creds:      creds,
		now:        time.Now,
	}
}

// WithBaseURL points the client at another API root, e.g. an httptest server.
func (c *SpotifyClient) WithBaseURL(baseURL string) *SpotifyClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// doRequest performs an authenticated HTTP request to the Spotify API and decodes a JSON reply into result.
//
// Endpoints are relative to the API root unless absolute (pagination "next" links). Non-2xx replies
// return a [*transport.StatusError]. The status code is returned so callers can tell 200 from 204.
func (c *SpotifyClient) doRequest(ctx context.Context, userID, method, endpoint string, query url.Values, body, result any) (int, error) {
	token, err := c.creds.Bearer(ctx, userID)
	if err != nil {
		return 0, err
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = c.baseURL + endpoint
	}
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &transport.StatusError{
			Status:     resp.StatusCode,
			RetryAfter: transport.ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Body:       string(msg),
		}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// CurrentUser retrieves the profile of the token holder.
func (c *SpotifyClient) CurrentUser(ctx context.Context, userID string) (*SpotifyUser, error) {
	var user SpotifyUser
	if _, err := c.doRequest(ctx, userID, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func artistNames(artists []SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
