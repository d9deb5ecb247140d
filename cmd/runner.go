package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/controller"
	"github.com/desertthunder/trueshuffle/internal/formatter"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/repositories"
	"github.com/desertthunder/trueshuffle/internal/server"
	"github.com/desertthunder/trueshuffle/internal/services"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/shuffle"
	"github.com/desertthunder/trueshuffle/internal/tasks"
	"github.com/desertthunder/trueshuffle/internal/transport"
	"github.com/urfave/cli/v3"
)

// localUser keys runs on the mpd backend, which has no accounts.
const localUser = "local"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and backends are opened on first use so that commands like setup work without them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db     *sql.DB
	ownsDB bool
	runs   *repositories.RunRepository
	users  *repositories.UserRepository
	tokens *repositories.TokenRepository

	library   services.Library
	player    transport.Executor
	refresher transport.Refresher
	engine    *controller.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB, Library and Player replace the configured database and backend when set.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
	Library    services.Library
	Player     transport.Executor
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		library:    opts.Library,
		player:     opts.Player,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, devicesCommand, playlistsCommand, playCommand, nextCommand,
		reshuffleCommand, stopCommand, statusCommand, runsCommand, exportCommand, copyCommand,
		tuiCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and anything wired after the call.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database opened by the runner. A database passed in [RunnerOpts] stays open.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.runs, r.users, r.tokens = nil, nil, nil
	return err
}

// open connects to the database, applies pending migrations and builds the repositories.
func (r *Runner) open() error {
	if r.runs != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		r.db = db
		r.ownsDB = true
	}

	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.runs = repositories.NewRunRepository(r.db)
	r.users = repositories.NewUserRepository(r.db)
	r.tokens = repositories.NewTokenRepository(r.db)
	return nil
}

// wire builds the playlist library and the player for the configured backend.
func (r *Runner) wire() error {
	if err := r.open(); err != nil {
		return err
	}
	if r.library != nil && r.player != nil {
		return nil
	}

	switch r.config.Controller.Backend {
	case "mpd":
		player := services.NewMPDPlayer(r.config.MPD, nil, r.logger)
		r.library = services.NewMPDLibrary(player)
		r.player = player
	default:
		auth, err := services.NewSpotifyAuth(r.config.Credentials.Spotify)
		if err != nil {
			return err
		}
		creds := services.NewCredentialStore(r.tokens, auth, r.config.Transport.RefreshMargin.Duration, r.logger)
		client := services.NewSpotifyClient(creds, r.httpClient)
		r.library = services.NewSpotifyLibrary(client)
		r.player = services.NewSpotifyPlayer(client)
		r.refresher = creds
	}
	return nil
}

// guard builds the reshuffle similarity guard from config.
func (r *Runner) guard() *shuffle.Guard {
	cfg := r.config.Shuffle
	return shuffle.NewGuard(cfg.SimilarityThreshold, cfg.SimilarityWindow, cfg.MaxAttempts, nil, r.logger)
}

// executor wraps the player with logging, retries, rate limiting and per-attempt timeouts.
func (r *Runner) executor() transport.Executor {
	cfg := r.config.Transport

	policy := transport.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BackoffBase = cfg.BackoffBase.Duration
	policy.BackoffCap = cfg.BackoffCap.Duration
	policy.JitterMax = cfg.JitterMax.Duration

	return transport.Chain(r.player,
		transport.WithLogging(r.logger),
		transport.WithRetry(policy, r.refresher, transport.RealClock(), r.logger),
		transport.WithRateLimit(transport.NewLimiter(cfg.RateLimit, cfg.RateBurst)),
		transport.WithTimeout(cfg.RequestTimeout.Duration),
	)
}

// playback returns the engine, wiring it on first use.
func (r *Runner) playback() (*controller.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if err := r.wire(); err != nil {
		return nil, err
	}

	r.engine = controller.NewEngine(r.executor(), r.runs, r.library, controller.Options{
		PollInterval: r.config.Controller.PollInterval.Duration,
		BufferSize:   r.config.Controller.BufferSize,
		Guard:        r.guard(),
		Logger:       r.logger,
	})
	return r.engine, nil
}

func (r *Runner) copier() (*tasks.Copier, error) {
	if err := r.wire(); err != nil {
		return nil, err
	}
	return tasks.NewCopier(r.library, r.runs, r.guard(), r.logger), nil
}

// controlFor prefers the endpoint of a running `play` process and falls back to a local engine.
func (r *Runner) controlFor(ctx context.Context) (server.Controller, error) {
	client := server.NewControlClient(r.config.Server.ControlAddr(), r.httpClient)
	if err := client.Ping(ctx); err == nil {
		r.logger.Debug("using running player", "addr", r.config.Server.ControlAddr())
		return client, nil
	}

	engine, err := r.playback()
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// resolveUser returns the --user flag, or the most recently logged-in account.
func (r *Runner) resolveUser(ctx context.Context, cmd *cli.Command) (string, error) {
	if id := cmd.String("user"); id != "" {
		return id, nil
	}
	if r.config.Controller.Backend == "mpd" {
		return localUser, nil
	}

	if err := r.open(); err != nil {
		return "", err
	}
	user, err := r.users.Latest(ctx)
	if errors.Is(err, shared.ErrUserNotFound) {
		return "", fmt.Errorf("%w: run 'trueshuffle auth login' first", shared.ErrNotAuthenticated)
	}
	if err != nil {
		return "", err
	}
	return user.SpotifyID, nil
}

// resolveKey builds the controller run key from --playlist, defaulting to the user's latest run.
func (r *Runner) resolveKey(ctx context.Context, cmd *cli.Command) (models.RunKey, error) {
	userID, err := r.resolveUser(ctx, cmd)
	if err != nil {
		return models.RunKey{}, err
	}
	key := models.RunKey{UserID: userID, PlaylistID: cmd.String("playlist"), Mode: models.ModeController}
	if key.PlaylistID != "" {
		return key, nil
	}

	if err := r.open(); err != nil {
		return models.RunKey{}, err
	}
	latest, err := r.runs.List(ctx, map[string]any{"user_id": userID, "mode": string(models.ModeController), "limit": 1})
	if err != nil {
		return models.RunKey{}, err
	}
	if len(latest) == 0 {
		return models.RunKey{}, fmt.Errorf("%w: --playlist", shared.ErrMissingArgument)
	}
	return latest[0].Key, nil
}

func (r *Runner) writeRun(run *models.Run, asJSON bool) error {
	if asJSON {
		return r.writeJSON(run, true)
	}
	return r.writePlain("%s", formatter.Summary(run))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
