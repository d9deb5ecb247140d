package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		stop()
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "trueshuffle",
		Usage:   "True-shuffle playback: every track of a playlist exactly once, in a fresh random order",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Spotify user ID (defaults to the most recent login)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.loadConfig,
		After:    r.closeAll,
		Commands: r.register(),
	}
}

// loadConfig reads the --config file when it exists; commands run on defaults otherwise.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfig(r.configPath)
	if errors.Is(err, shared.ErrMissingConfig) {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return ctx, nil
	}
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

func (r *Runner) closeAll(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}
