// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func playlistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "playlist",
		Aliases: []string{"p"},
		Usage:   "Playlist ID (defaults to the most recent run)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.SetupDatabase,
	}
}

// authCommand handles Spotify account linking
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser (OAuth2 + PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the linked account and token expiry",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored account and tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List playback devices",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Devices,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List playlists",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return",
				Value: 50,
			},
			jsonFlag(),
		},
		Action: r.Playlists,
	}
}

// playCommand starts or resumes a run and keeps the reconcile loop in the foreground.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Start or resume true-shuffle playback of a playlist",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the player view while playing",
			},
		},
		Action: r.Play,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "next",
		Aliases: []string{"skip"},
		Usage:   "Advance to the next track in the shuffled order",
		Flags:   []cli.Flag{playlistFlag(), jsonFlag()},
		Action:  r.Next,
	}
}

func reshuffleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "reshuffle",
		Usage:  "Draw a new order and restart from its first track",
		Flags:  []cli.Flag{playlistFlag(), jsonFlag()},
		Action: r.Reshuffle,
	}
}

func stopCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stop",
		Usage:  "Stop controlling playback, keeping the position for a later resume",
		Flags:  []cli.Flag{playlistFlag(), jsonFlag()},
		Action: r.Stop,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the state of a run",
		Flags:  []cli.Flag{playlistFlag(), jsonFlag()},
		Action: r.Status,
	}
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Only runs of this mode (controller or utility)",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only runs in this status",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to return",
				Value: 20,
			},
			jsonFlag(),
		},
		Action: r.Runs,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the play order of a run to a file",
		Flags: []cli.Flag{
			playlistFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "csv, md or txt",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: {run id}_order.{format})",
			},
		},
		Action: r.Export,
	}
}

// copyCommand writes a shuffled copy of a playlist.
func copyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "Create a new playlist holding a shuffled copy of another",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Source playlist ID",
				Required: true,
			},
			jsonFlag(),
		},
		Action: r.Copy,
	}
}

// tuiCommand returns the top-level TUI command for interactive playback.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive TUI",
		Action:  r.TUI,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Follow a run in the player view",
		Flags:  []cli.Flag{playlistFlag()},
		Action: r.Watch,
	}
}
