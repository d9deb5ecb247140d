package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/fhs/gompd/v2/mpd"
)

// MPDLibrary serves the daemon's stored playlists. Playlist IDs are the stored playlist names and
// the user ID is ignored.
type MPDLibrary struct {
	player *MPDPlayer
}

var _ Library = (*MPDLibrary)(nil)

// NewMPDLibrary shares the connection of player.
func NewMPDLibrary(player *MPDPlayer) *MPDLibrary {
	return &MPDLibrary{player: player}
}

// Playlists lists the stored playlists by name.
func (l *MPDLibrary) Playlists(ctx context.Context, _ string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := l.player.do(ctx, func(conn MPDConn) error {
		entries, err := conn.ListPlaylists()
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry["playlist"]
			if name == "" {
				continue
			}
			songs, err := conn.PlaylistContents(name)
			if err != nil {
				return err
			}
			playlists = append(playlists, models.Playlist{ID: name, Name: name, Owner: "mpd", TrackCount: len(songs)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mpd playlists: %w", err)
	}

	slices.SortFunc(playlists, func(a, b models.Playlist) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return playlists, nil
}

// PlaylistTracks reads a stored playlist, dropping entries without a file and repeated files.
func (l *MPDLibrary) PlaylistTracks(ctx context.Context, _ string, playlistID string) (*models.TrackList, error) {
	var songs []mpd.Attrs
	err := l.player.do(ctx, func(conn MPDConn) error {
		var err error
		songs, err = conn.PlaylistContents(playlistID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
	}

	list := &models.TrackList{Playlist: models.Playlist{ID: playlistID, Name: playlistID, Owner: "mpd", TrackCount: len(songs)}}
	seen := make(map[string]bool, len(songs))
	for _, song := range songs {
		file := song["file"]
		name := song["Title"]
		if name == "" {
			name = file
		}

		switch {
		case file == "":
			list.Excluded = append(list.Excluded, models.ExcludedTrack{Name: name, Reason: models.ReasonNoURI})
		case seen[file]:
			list.Excluded = append(list.Excluded, models.ExcludedTrack{Name: name, URI: file, Reason: models.ReasonDuplicate})
		default:
			seen[file] = true
			duration := secondsToMS(song["duration"])
			if duration == 0 {
				duration = secondsToMS(song["Time"])
			}
			list.Tracks = append(list.Tracks, models.Track{URI: file, Name: name, Artist: song["Artist"], DurationMS: duration})
		}
	}
	return list, nil
}

// CreatePlaylist reserves a stored playlist name; the daemon creates it on the first add.
// A taken name gets a numeric suffix.
func (l *MPDLibrary) CreatePlaylist(ctx context.Context, _ string, name, _ string) (*models.Playlist, error) {
	var taken map[string]bool
	err := l.player.do(ctx, func(conn MPDConn) error {
		entries, err := conn.ListPlaylists()
		if err != nil {
			return err
		}
		taken = make(map[string]bool, len(entries))
		for _, entry := range entries {
			taken[entry["playlist"]] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mpd playlists: %w", err)
	}

	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return &models.Playlist{ID: candidate, Name: candidate, Owner: "mpd"}, nil
}

// AddTracks appends uris to the stored playlist in order.
func (l *MPDLibrary) AddTracks(ctx context.Context, _ string, playlistID string, uris []string) error {
	return l.player.do(ctx, func(conn MPDConn) error {
		for _, uri := range uris {
			if err := conn.PlaylistAdd(playlistID, uri); err != nil {
				return fmt.Errorf("failed to add %s: %w", uri, err)
			}
		}
		return nil
	})
}
