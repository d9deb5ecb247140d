// package services implements the remote backends behind the playback engine
//
// Spotify Web API (player, library, OAuth) and Music Player Daemon
package services

import (
	"context"

	"github.com/desertthunder/trueshuffle/internal/models"
)

// Library reads playlists and writes shuffled copies.
type Library interface {
	// PlaylistTracks returns the deduplicated playable tracks of a playlist and the entries left out.
	PlaylistTracks(ctx context.Context, userID, playlistID string) (*models.TrackList, error)

	// Playlists lists the playlists the user owns or follows.
	Playlists(ctx context.Context, userID string) ([]models.Playlist, error)

	// CreatePlaylist creates a private playlist owned by the user.
	CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error)

	// AddTracks appends uris to a playlist, preserving their order.
	AddTracks(ctx context.Context, userID, playlistID string, uris []string) error
}

// Credentials supplies the bearer token for a user's requests.
type Credentials interface {
	Bearer(ctx context.Context, userID string) (string, error)
}

// StaticToken is a fixed bearer token, used before the account is known (e.g. right after login).
type StaticToken string

func (t StaticToken) Bearer(context.Context, string) (string, error) {
	return string(t), nil
}
