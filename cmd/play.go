package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/trueshuffle/internal/controller"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/server"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds the wait for in-flight iterations when `play` exits.
const shutdownTimeout = 10 * time.Second

// Devices lists the playback devices visible to the account.
func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return err
	}
	engine, err := r.playback()
	if err != nil {
		return err
	}

	devices, err := engine.Devices(ctx, userID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}

	if len(devices) == 0 {
		return r.writePlain("%s\n", controller.NoDeviceMessage)
	}
	selected := models.SelectDevice(devices)
	for _, d := range devices {
		marker := " "
		if selected != nil && d.ID == selected.ID {
			marker = "●"
		}
		note := ""
		if d.IsRestricted {
			note = " (restricted)"
		}
		r.writePlain("%s %s [%s]%s\n", marker, d.Name, d.Type, note)
	}
	return nil
}

// Playlists lists the account's playlists with their IDs.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.wire(); err != nil {
		return err
	}

	playlists, err := r.library.Playlists(ctx, userID)
	if err != nil {
		return err
	}
	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Owner != "" {
			r.writePlain("   Owner: %s\n", p.Owner)
		}
		r.writePlain("\n")
	}
	return nil
}

// Play starts or resumes the run for a playlist and drives it until it ends or the process is interrupted.
//
// While playing, the run control endpoint serves next, reshuffle, stop and status to other invocations.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	key, err := r.resolveKey(ctx, cmd)
	if err != nil {
		return err
	}
	addr := r.config.Server.ControlAddr()
	if err := server.NewControlClient(addr, r.httpClient).Ping(ctx); err == nil {
		return fmt.Errorf("%w: a player is already running at %s, use 'trueshuffle status'", shared.ErrInvalidArgument, addr)
	}
	if cmd.Bool("tui") {
		if err := r.useFileLogger(); err != nil {
			return err
		}
	}

	engine, err := r.playback()
	if err != nil {
		return err
	}

	run, err := engine.StartOrResume(ctx, key)
	if err != nil {
		return err
	}
	if !engine.Running(key) {
		return r.writeRun(run, false)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serverErrors := r.serveControl(srvCtx, engine)

	if cmd.Bool("tui") {
		err = r.runTUI(ctx, r.playerOptions(key, engine, engine))
	} else {
		r.writeRun(run, false)
		r.writePlainln("→ Playing. Use 'trueshuffle next|reshuffle|stop' from another terminal, Ctrl+C to exit.")
		r.follow(ctx, engine, key, serverErrors)
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if shutdownErr := engine.Shutdown(shutdownCtx); shutdownErr != nil {
		r.logger.Warn("error stopping playback loop", "error", shutdownErr)
	}
	if err != nil {
		return err
	}

	final, err := engine.GetStatus(context.WithoutCancel(ctx), key)
	if err != nil {
		return err
	}
	return r.writeRun(final, false)
}

// follow blocks until the loop for key exits or ctx ends, logging status transitions.
func (r *Runner) follow(ctx context.Context, engine *controller.Engine, key models.RunKey, serverErrors <-chan error) {
	ticker := time.NewTicker(r.config.Controller.PollInterval.Duration)
	defer ticker.Stop()

	var last models.Status
	for {
		select {
		case <-ctx.Done():
			r.writePlainln("→ Interrupted, the run resumes on the next 'trueshuffle play'")
			return
		case err, ok := <-serverErrors:
			if ok && err != nil {
				r.logger.Warn("run control endpoint unavailable", "error", err)
			}
			serverErrors = nil
		case <-ticker.C:
			if !engine.Running(key) {
				return
			}
			run, err := engine.GetStatus(ctx, key)
			if err != nil {
				continue
			}
			if run.Status != last {
				r.logger.Info("run status", "status", run.Status, "progress", fmt.Sprintf("%d/%d", run.Cursor+1, len(run.Order)))
				last = run.Status
			}
		}
	}
}

// serveControl exposes ctrl on the control address until ctx ends.
func (r *Runner) serveControl(ctx context.Context, ctrl server.Controller) <-chan error {
	router := server.NewBasicRouter()
	router.Use(server.WithRecover(r.logger), server.WithLogging(r.logger))
	router.Handler(server.NewControlHandler(ctrl, r.logger))
	return server.Serve(ctx, r.config.Server.ControlAddr(), router, r.logger)
}

// Next advances to the entry after the cursor.
func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, server.Controller.AdvanceManual)
}

// Reshuffle replaces the order of the run and restarts from its first entry.
func (r *Runner) Reshuffle(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, server.Controller.ReshuffleNow)
}

// Stop ends control of the run, keeping its cursor.
func (r *Runner) Stop(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, server.Controller.Stop)
}

// Status prints the run for a playlist.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, server.Controller.GetStatus)
}

type controlOp func(server.Controller, context.Context, models.RunKey) (*models.Run, error)

func (r *Runner) control(ctx context.Context, cmd *cli.Command, op controlOp) error {
	key, err := r.resolveKey(ctx, cmd)
	if err != nil {
		return err
	}
	ctrl, err := r.controlFor(ctx)
	if err != nil {
		return err
	}

	run, err := op(ctrl, ctx, key)
	if err != nil {
		return err
	}
	return r.writeRun(run, cmd.Bool("json"))
}
