package tasks

import (
	"fmt"

	"github.com/desertthunder/trueshuffle/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	Shuffle
	CreatePlaylist
	AddTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case Shuffle:
		return "shuffle"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchSourceUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", playlistID),
	}
}

func foundPlaylistUpdate(list *models.TrackList) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks, %d excluded)", list.Playlist.Name, len(list.Tracks), len(list.Excluded)),
		Data:    list,
	}
}

func shuffledUpdate(tracks, attempts int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Shuffle,
		Step:    attempts,
		Total:   attempts,
		Message: fmt.Sprintf("Shuffled %d tracks (%d attempts)", tracks, attempts),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist 🔀 %s...", name),
	}
}

func createdPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addTracksUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding tracks...", step, total),
	}
}

func doneUpdate(run *models.Run) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    len(run.Order),
		Total:   len(run.Order),
		Message: fmt.Sprintf("✓ %d tracks written to %s", len(run.Order), run.TargetPlaylistID),
		Data:    run,
	}
}
