package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trueshuffle/internal/formatter"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runs lists the account's runs, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return err
	}

	criteria := map[string]any{"user_id": userID, "limit": cmd.Int("limit")}
	if v := cmd.String("mode"); v != "" {
		mode, err := models.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["mode"] = string(mode)
	}
	if v := cmd.String("status"); v != "" {
		status, err := models.ParseStatus(v)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["status"] = string(status)
	}

	if err := r.open(); err != nil {
		return err
	}
	runs, err := r.runs.List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if runs == nil {
			runs = []*models.Run{}
		}
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No runs yet. Start one with 'trueshuffle play --playlist <id>'\n")
	}
	return formatter.WriteRuns(r.output, runs)
}

// Export writes the play order of a run with per-entry state.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	key, err := r.resolveKey(ctx, cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}
	run, err := r.runs.LoadRun(ctx, key)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, key)
	}

	name := key.PlaylistID
	tracks := map[string]models.Track{}
	if err := r.wire(); err != nil {
		r.logger.Warn("exporting without track names", "error", err)
	} else if list, err := r.library.PlaylistTracks(ctx, key.UserID, key.PlaylistID); err != nil {
		r.logger.Warn("exporting without track names", "error", err)
	} else {
		name = list.Playlist.Name
		tracks = formatter.TrackIndex(list)
	}

	path, err := formatter.WriteExport(run, name, tracks, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Infof("play order exported to %v with %v entries", path, len(run.Order))
	r.writePlain("✓ Play order exported to %s\n", path)
	r.writePlain("  Playlist: %s\n", name)
	r.writePlain("  Entries:  %d\n", len(run.Order))
	return nil
}

// Copy writes a shuffled copy of a playlist, printing progress as it goes.
func (r *Runner) Copy(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return err
	}
	copier, err := r.copier()
	if err != nil {
		return err
	}

	quiet := cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !quiet {
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	result, err := copier.Copy(ctx, progress, userID, cmd.String("playlist"))
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if quiet {
		return r.writeJSON(result.Run, true)
	}

	r.writePlainHeader("Shuffle Copy Complete")
	r.writePlain("Source:   %s\n", playlistName(result.Source))
	r.writePlain("Copy:     %s (%s)\n", playlistName(result.Target), result.Target.ID)
	r.writePlain("Tracks:   %d\n", result.Tracks)
	if len(result.Excluded) > 0 {
		r.writePlain("Excluded: %d\n", len(result.Excluded))
		for _, ex := range result.Excluded {
			r.writePlain("  - %s (%s)\n", ex.Name, ex.Reason)
		}
	}
	if result.Resumed {
		r.writePlain("Resumed an interrupted copy\n")
	}
	return nil
}

func playlistName(p models.Playlist) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
