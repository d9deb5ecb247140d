package models

import "time"

// Playlist is basic playlist metadata.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"track_count"`
}

// Track is one playable playlist entry.
type Track struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	DurationMS int    `json:"duration_ms"`
}

// ExcludedTrack is an entry dropped during ingestion.
type ExcludedTrack struct {
	Name   string `json:"name"`
	URI    string `json:"uri,omitempty"`
	Reason string `json:"reason"`
}

// Exclusion reasons.
const (
	ReasonUnavailable = "unavailable"
	ReasonLocal       = "local file"
	ReasonNotTrack    = "not a track"
	ReasonNoURI       = "missing uri"
	ReasonDuplicate   = "duplicate"
)

// TrackList is a playlist after ingestion: deduplicated playable tracks plus what was left out.
type TrackList struct {
	Playlist Playlist
	Tracks   []Track
	Excluded []ExcludedTrack
}

// URIs returns the track identifiers in playlist order.
func (l *TrackList) URIs() []string {
	uris := make([]string, len(l.Tracks))
	for i, t := range l.Tracks {
		uris[i] = t.URI
	}
	return uris
}

// User is an account that completed the OAuth flow.
type User struct {
	ID          string    `json:"id"`
	Sequence    int       `json:"sequence"`
	SpotifyID   string    `json:"spotify_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
