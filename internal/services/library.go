package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

const (
	playlistPageSize = 100
	addTracksBatch   = 100
)

// SpotifyLibrary reads and writes playlists through the Spotify Web API.
type SpotifyLibrary struct {
	client *SpotifyClient
}

// NewSpotifyLibrary creates a [Library] backed by client.
func NewSpotifyLibrary(client *SpotifyClient) *SpotifyLibrary {
	return &SpotifyLibrary{client: client}
}

// Playlist retrieves playlist metadata, wrapping [shared.ErrPlaylistNotFound] on 404.
func (l *SpotifyLibrary) Playlist(ctx context.Context, userID, playlistID string) (*models.Playlist, error) {
	query := url.Values{"fields": {"id,name,owner(id,display_name),tracks(total)"}}

	var sp SpotifySimplePlaylist
	if _, err := l.client.doRequest(ctx, userID, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), query, nil, &sp); err != nil {
		if transport.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	playlist := sp.toModel()
	return &playlist, nil
}

// Playlists retrieves all playlists for the user.
func (l *SpotifyLibrary) Playlists(ctx context.Context, userID string) ([]models.Playlist, error) {
	var playlists []models.Playlist

	endpoint := "/me/playlists"
	query := url.Values{"limit": {"50"}}
	for endpoint != "" {
		var page SpotifyPaginatedPlaylists
		if _, err := l.client.doRequest(ctx, userID, http.MethodGet, endpoint, query, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			playlists = append(playlists, sp.toModel())
		}

		endpoint, query = nextPage(page.Next)
	}

	return playlists, nil
}

// PlaylistTracks fetches every entry of a playlist and filters it down to playable tracks.
//
// Unavailable entries, local files, episodes, entries without a URI, and repeated URIs are reported
// in [models.TrackList.Excluded] with a reason. Remaining tracks keep their playlist order.
func (l *SpotifyLibrary) PlaylistTracks(ctx context.Context, userID, playlistID string) (*models.TrackList, error) {
	playlist, err := l.Playlist(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}

	list := &models.TrackList{Playlist: *playlist}
	seen := make(map[string]bool)

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	query := url.Values{
		"limit":  {strconv.Itoa(playlistPageSize)},
		"fields": {"items(track(uri,type,is_local,name,duration_ms,artists(name))),next,total"},
	}
	for endpoint != "" {
		var page SpotifyPaginatedItems
		if _, err := l.client.doRequest(ctx, userID, http.MethodGet, endpoint, query, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch tracks of %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			track, reason := classifyItem(item, seen)
			if reason != "" {
				ex := models.ExcludedTrack{Reason: reason}
				if item.Track != nil {
					ex.Name = item.Track.Name
					ex.URI = item.Track.URI
				}
				list.Excluded = append(list.Excluded, ex)
				continue
			}
			seen[track.URI] = true
			list.Tracks = append(list.Tracks, track)
		}

		endpoint, query = nextPage(page.Next)
	}

	return list, nil
}

// classifyItem returns the track for a playable entry, or the reason it is excluded.
func classifyItem(item SpotifyPlaylistItem, seen map[string]bool) (models.Track, string) {
	t := item.Track
	switch {
	case t == nil:
		return models.Track{}, models.ReasonUnavailable
	case t.IsLocal:
		return models.Track{}, models.ReasonLocal
	case t.Type != "" && t.Type != "track":
		return models.Track{}, models.ReasonNotTrack
	case t.URI == "":
		return models.Track{}, models.ReasonNoURI
	case seen[t.URI]:
		return models.Track{}, models.ReasonDuplicate
	}
	return models.Track{URI: t.URI, Name: t.Name, Artist: artistNames(t.Artists), DurationMS: t.DurationMS}, ""
}

// CreatePlaylist creates a private playlist owned by userID, the Spotify user ID.
func (l *SpotifyLibrary) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	body := map[string]any{
		"name":        name,
		"public":      false,
		"description": description,
	}

	var sp SpotifySimplePlaylist
	if _, err := l.client.doRequest(ctx, userID, http.MethodPost, "/users/"+url.PathEscape(userID)+"/playlists", nil, body, &sp); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if sp.ID == "" {
		return nil, fmt.Errorf("%w: created playlist has no ID", shared.ErrAPIRequest)
	}

	playlist := sp.toModel()
	return &playlist, nil
}

// AddTracks appends uris in batches of 100, one request at a time.
func (l *SpotifyLibrary) AddTracks(ctx context.Context, userID, playlistID string, uris []string) error {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"

	for start := 0; start < len(uris); start += addTracksBatch {
		end := min(start+addTracksBatch, len(uris))
		body := map[string]any{"uris": uris[start:end]}

		if _, err := l.client.doRequest(ctx, userID, http.MethodPost, endpoint, nil, body, nil); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// CurrentUser returns the account behind the user's token.
func (l *SpotifyLibrary) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	sp, err := l.client.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sp.ID == "" {
		return nil, errors.New("spotify profile has no user ID")
	}
	return &models.User{SpotifyID: sp.ID, DisplayName: sp.DisplayName}, nil
}

func (sp SpotifySimplePlaylist) toModel() models.Playlist {
	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}
	name := sp.Name
	if name == "" {
		name = "(untitled)"
	}
	return models.Playlist{ID: sp.ID, Name: name, Owner: owner, TrackCount: sp.Tracks.Total}
}

func nextPage(next *string) (string, url.Values) {
	if next == nil {
		return "", nil
	}
	return *next, nil
}
