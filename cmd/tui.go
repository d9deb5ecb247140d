package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/trueshuffle-tui.log"

// TUI launches the interactive terminal UI: pick a playlist, then play it or write a shuffled copy.
//
// Runs started here are driven by this process and stop being reconciled when it exits.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.useFileLogger(); err != nil {
		return err
	}

	engine, err := r.playback()
	if err != nil {
		return err
	}
	copier, err := r.copier()
	if err != nil {
		return err
	}

	err = r.runTUI(ctx, ui.Options{
		UserID:       userID,
		Library:      r.library,
		Controller:   engine,
		Starter:      engine,
		Copier:       copier,
		PollInterval: r.uiPollInterval(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if shutdownErr := engine.Shutdown(shutdownCtx); shutdownErr != nil {
		r.logger.Warn("error stopping playback loops", "error", shutdownErr)
	}
	return err
}

// Watch follows a run in the player view, acting through a running `play` process when there is one.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	key, err := r.resolveKey(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.useFileLogger(); err != nil {
		return err
	}

	ctrl, err := r.controlFor(ctx)
	if err != nil {
		return err
	}
	if _, err := ctrl.GetStatus(ctx, key); err != nil {
		return err
	}

	opts := ui.Options{UserID: key.UserID, Key: &key, Controller: ctrl, PollInterval: r.uiPollInterval()}
	return r.runTUI(ctx, opts)
}

// playerOptions opens the TUI on key, as `play --tui` does.
func (r *Runner) playerOptions(key models.RunKey, ctrl ui.Controller, starter ui.Starter) ui.Options {
	return ui.Options{
		UserID:       key.UserID,
		Key:          &key,
		Controller:   ctrl,
		Starter:      starter,
		PollInterval: r.uiPollInterval(),
	}
}

func (r *Runner) runTUI(ctx context.Context, opts ui.Options) error {
	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// useFileLogger redirects logs to a file to avoid interfering with TUI rendering.
func (r *Runner) useFileLogger() error {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

func (r *Runner) uiPollInterval() time.Duration {
	return min(r.config.Controller.PollInterval.Duration, time.Second)
}
