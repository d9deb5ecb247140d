// package tasks implements one-shot playlist operations that run outside the playback engine.
//
// The core operation is the shuffle copy: a playlist is shuffled once and written out as a new playlist.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/shuffle"
)

// addBatch is the largest number of tracks written per request.
const addBatch = 100

// CopyLibrary reads a playlist and writes the shuffled copy.
type CopyLibrary interface {
	PlaylistTracks(ctx context.Context, userID, playlistID string) (*models.TrackList, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error)
	AddTracks(ctx context.Context, userID, playlistID string, uris []string) error
}

// RunStore persists utility runs.
type RunStore interface {
	LoadRun(ctx context.Context, key models.RunKey) (*models.Run, error)
	SaveRun(ctx context.Context, run *models.Run) error
}

// CopyResult describes a finished shuffle copy.
type CopyResult struct {
	Run      *models.Run
	Source   models.Playlist
	Target   models.Playlist
	Tracks   int
	Excluded []models.ExcludedTrack
	// Resumed is set when an earlier copy of the same playlist was picked up instead of starting over.
	Resumed bool
	// Attempts is the number of shuffles the similarity guard drew.
	Attempts int
}

// Copier writes shuffled copies of playlists, recording each as a utility run.
type Copier struct {
	library CopyLibrary
	store   RunStore
	guard   *shuffle.Guard
	logger  *log.Logger
}

// NewCopier creates a [Copier]. guard and logger fall back to defaults when nil.
func NewCopier(library CopyLibrary, store RunStore, guard *shuffle.Guard, logger *log.Logger) *Copier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if guard == nil {
		guard = shuffle.NewGuard(0.5, 10, 5, nil, logger)
	}
	return &Copier{library: library, store: store, guard: guard, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Copy shuffles playlistID into a new private playlist named "🔀 <name>".
//
// When the latest utility run for the playlist is unfinished (it has a target playlist but not all
// tracks were written), Copy resumes it from where it stopped without reshuffling. Otherwise a new
// order is drawn through the similarity guard against the previous copy's order.
func (c *Copier) Copy(ctx context.Context, progress chan<- ProgressUpdate, userID, playlistID string) (*CopyResult, error) {
	key := models.RunKey{UserID: userID, PlaylistID: playlistID, Mode: models.ModeUtility}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	logger := shared.WithLogger(c.logger, "user", userID, "playlist", playlistID)

	prev, err := c.store.LoadRun(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if prev != nil && !prev.Status.Terminal() && prev.TargetPlaylistID != "" {
		logger.Info("resuming shuffle copy", "run", prev.ID, "target", prev.TargetPlaylistID, "written", prev.Cursor+1)
		result := &CopyResult{
			Run:      prev,
			Source:   models.Playlist{ID: playlistID},
			Target:   models.Playlist{ID: prev.TargetPlaylistID},
			Tracks:   len(prev.Order),
			Excluded: prev.Excluded,
			Resumed:  true,
		}
		return result, c.write(ctx, progress, prev)
	}

	sendProgress(progress, fetchSourceUpdate(playlistID))
	list, err := c.library.PlaylistTracks(ctx, userID, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist %s: %w", playlistID, err)
	}
	if len(list.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %s (excluded: %d)", shared.ErrEmptyPlaylist, playlistID, len(list.Excluded))
	}
	sendProgress(progress, foundPlaylistUpdate(list))

	var prevOrder []string
	if prev != nil {
		prevOrder = prev.Order
	}
	order, attempts := c.guard.Reshuffle(list.URIs(), prevOrder)
	sendProgress(progress, shuffledUpdate(len(order), attempts))

	name := list.Playlist.Name
	if name == "" {
		name = playlistID
	}
	sendProgress(progress, createPlaylistUpdate(name))
	target, err := c.library.CreatePlaylist(ctx, userID, "🔀 "+name, fmt.Sprintf("Shuffled copy of '%s' by trueshuffle", name))
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	sendProgress(progress, createdPlaylistUpdate(target))

	run := models.NewRun(key, order)
	run.Status = models.StatusPending
	run.TargetPlaylistID = target.ID
	run.Excluded = list.Excluded
	if err := c.save(ctx, run); err != nil {
		return nil, err
	}
	logger.Info("created shuffle copy", "run", run.ID, "target", target.ID, "tracks", len(order), "excluded", len(list.Excluded), "shuffle_attempts", attempts)

	result := &CopyResult{
		Run:      run,
		Source:   list.Playlist,
		Target:   *target,
		Tracks:   len(order),
		Excluded: list.Excluded,
		Attempts: attempts,
	}
	return result, c.write(ctx, progress, run)
}

// write adds the tracks after the run's cursor in batches, persisting the cursor after each batch,
// and marks the run COMPLETED.
func (c *Copier) write(ctx context.Context, progress chan<- ProgressUpdate, run *models.Run) error {
	total := len(run.Order)

	for start := run.Cursor + 1; start < total; start += addBatch {
		end := min(start+addBatch, total)
		sendProgress(progress, addTracksUpdate(end, total))

		if err := c.library.AddTracks(ctx, run.Key.UserID, run.TargetPlaylistID, run.Order[start:end]); err != nil {
			run.LastError = err.Error()
			if serr := c.save(ctx, run); serr != nil {
				c.logger.Error("failed to record copy error", "run", run.ID, "error", serr)
			}
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}

		run.Cursor = end - 1
		run.QueuedUntil = end - 1
		if err := c.save(ctx, run); err != nil {
			return err
		}
	}

	run.Status = models.StatusCompleted
	run.LastError = ""
	if err := c.save(ctx, run); err != nil {
		return err
	}
	sendProgress(progress, doneUpdate(run))
	return nil
}

func (c *Copier) save(ctx context.Context, run *models.Run) error {
	run.Touch()
	if err := c.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}
