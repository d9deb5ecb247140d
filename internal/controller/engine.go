package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/shuffle"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

// NoDeviceMessage is shown while a run waits for a playback device.
const NoDeviceMessage = "No active Spotify device found. Open Spotify on any device and press play, then try again."

var ErrRunInactive = errors.New("run is not active")

// RunStore persists runs. Both calls are atomic.
type RunStore interface {
	// LoadRun returns the most recently created run for key in any status, or nil when there is none.
	LoadRun(ctx context.Context, key models.RunKey) (*models.Run, error)
	SaveRun(ctx context.Context, run *models.Run) error
}

// PlaylistSource supplies the deduplicated, playable tracks of a playlist.
type PlaylistSource interface {
	PlaylistTracks(ctx context.Context, userID, playlistID string) (*models.TrackList, error)
}

// Options configures an [Engine]. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	BufferSize   int
	Guard        *shuffle.Guard
	Serializer   *transport.Serializer
	Logger       *log.Logger
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine reconciles remote playback with the play order of each active run.
type Engine struct {
	exec   transport.Executor
	store  RunStore
	source PlaylistSource
	guard  *shuffle.Guard
	lock   *transport.Serializer
	logger *log.Logger

	pollInterval time.Duration
	bufferSize   int

	mu      sync.Mutex
	workers map[models.RunKey]*worker
}

// NewEngine creates an [Engine] issuing commands through exec.
func NewEngine(exec transport.Executor, store RunStore, source PlaylistSource, opts Options) *Engine {
	e := &Engine{
		exec:         exec,
		store:        store,
		source:       source,
		guard:        opts.Guard,
		lock:         opts.Serializer,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		bufferSize:   opts.BufferSize,
		workers:      make(map[models.RunKey]*worker),
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	if e.pollInterval <= 0 {
		e.pollInterval = 3 * time.Second
	}
	if e.bufferSize <= 0 {
		e.bufferSize = 5
	}
	if e.guard == nil {
		e.guard = shuffle.NewGuard(0.5, 10, 5, nil, e.logger)
	}
	if e.lock == nil {
		e.lock = transport.NewSerializer()
	}
	return e
}

// StartOrResume returns the run for key, creating and starting it if needed.
//
// A run whose loop is already running is returned as is. A COMPLETED run is replaced by a fresh run
// whose order is guarded against the previous one; any other run restarts playback from its cursor.
func (e *Engine) StartOrResume(ctx context.Context, key models.RunKey) (*models.Run, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	if key.Mode != models.ModeController {
		return nil, fmt.Errorf("%w: %s runs are not driven by the playback engine", shared.ErrInvalidArgument, key.Mode)
	}

	var out *models.Run
	err := e.lock.WithLock(ctx, key.UserID, func() error {
		ctx := context.WithoutCancel(ctx)

		run, err := e.store.LoadRun(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}

		if run == nil || run.Status == models.StatusCompleted {
			var prev []string
			if run != nil {
				prev = run.Order
			}
			if run, err = e.newRun(ctx, key, prev); err != nil {
				return err
			}
		} else if run.Status.Active() && e.running(key) {
			out = run.Clone()
			return nil
		}

		logger := e.runLogger(run)
		logger.Info("starting run", "status", run.Status, "cursor", run.Cursor, "tracks", len(run.Order))

		run.Status = models.StatusStarting
		run.LastError = ""
		if err := e.save(ctx, run); err != nil {
			return err
		}

		e.step(ctx, run)
		if err := e.save(ctx, run); err != nil {
			return err
		}
		if run.Status.Active() {
			e.spawn(key)
		}
		out = run.Clone()
		return nil
	})
	return out, err
}

// AdvanceManual moves playback to the entry after the cursor, as if it had been reached naturally.
func (e *Engine) AdvanceManual(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return e.mutate(ctx, key, func(ctx context.Context, run *models.Run) error {
		if !run.Status.Active() {
			return fmt.Errorf("%w: %s", ErrRunInactive, run.Status)
		}
		if run.PlayableFrom(run.Cursor+1) < 0 {
			e.complete(run, "manual advance past last track")
			return nil
		}
		if ok := e.checkDevice(ctx, run); !ok {
			return nil
		}
		if err := e.start(ctx, run, run.Cursor+1, false); err != nil {
			e.handle(run, err, transport.StartPlayback)
		}
		return nil
	})
}

// ReshuffleNow replaces the order with a guarded reshuffle and resets the cursor.
//
// An active run restarts playback from the new first entry. A terminal run is revived as PENDING.
func (e *Engine) ReshuffleNow(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return e.mutate(ctx, key, func(ctx context.Context, run *models.Run) error {
		order, attempts := e.guard.Reshuffle(run.Order, run.Order)
		e.runLogger(run).Info("reshuffled", "attempts", attempts, "tracks", len(order))

		run.Order = order
		run.Cursor = -1
		run.QueuedUntil = -1
		run.Passed = nil
		run.NowPlaying = nil
		run.LastError = ""

		switch {
		case run.Status.Active():
			run.Status = models.StatusStarting
			e.step(ctx, run)
		case run.Status.Terminal():
			run.Status = models.StatusPending
		}
		return nil
	})
}

// Stop ends the loop for key and marks the run STOPPED, keeping its cursor for a later resume.
// The in-flight iteration, if any, completes first.
func (e *Engine) Stop(ctx context.Context, key models.RunKey) (*models.Run, error) {
	if err := e.halt(ctx, key); err != nil {
		return nil, err
	}
	return e.mutate(ctx, key, func(ctx context.Context, run *models.Run) error {
		if run.Status.Terminal() {
			return nil
		}
		run.Status = models.StatusStopped
		run.Message = ""
		e.runLogger(run).Info("run stopped", "cursor", run.Cursor)
		return nil
	})
}

// GetStatus returns a snapshot of the run for key without taking the user's section.
func (e *Engine) GetStatus(ctx context.Context, key models.RunKey) (*models.Run, error) {
	run, err := e.store.LoadRun(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, key)
	}
	return run, nil
}

// Devices lists the playback devices visible to the user.
func (e *Engine) Devices(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := e.lock.WithLock(ctx, userID, func() error {
		resp, err := e.exec.Execute(context.WithoutCancel(ctx), transport.Command{Kind: transport.GetDevices, UserID: userID})
		if err != nil {
			return err
		}
		devices = resp.Devices
		return nil
	})
	return devices, err
}

// Poll runs one reconcile iteration for key. It returns the persisted run.
func (e *Engine) Poll(ctx context.Context, key models.RunKey) (*models.Run, error) {
	var out *models.Run
	err := e.lock.WithLock(ctx, key.UserID, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctx := context.WithoutCancel(ctx)

		run, err := e.store.LoadRun(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("%w: %s", shared.ErrRunNotFound, key)
		}
		if !run.Status.Active() {
			out = run
			return nil
		}

		e.step(ctx, run)
		if err := e.save(ctx, run); err != nil {
			return err
		}
		out = run.Clone()
		return nil
	})
	return out, err
}

// Running reports whether a loop is driving key.
func (e *Engine) Running(key models.RunKey) bool {
	return e.running(key)
}

// Shutdown cancels every loop and waits for in-flight iterations to finish or ctx to expire.
// Runs keep their persisted status so they resume on the next start.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	workers := make([]*worker, 0, len(e.workers))
	for key, w := range e.workers {
		w.cancel()
		workers = append(workers, w)
		delete(e.workers, key)
	}
	e.mu.Unlock()

	for _, w := range workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// mutate runs fn on the stored run for key inside the user's section and persists the result.
func (e *Engine) mutate(ctx context.Context, key models.RunKey, fn func(context.Context, *models.Run) error) (*models.Run, error) {
	var out *models.Run
	err := e.lock.WithLock(ctx, key.UserID, func() error {
		ctx := context.WithoutCancel(ctx)

		run, err := e.store.LoadRun(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("%w: %s", shared.ErrRunNotFound, key)
		}

		if err := fn(ctx, run); err != nil {
			return err
		}
		if err := e.save(ctx, run); err != nil {
			return err
		}
		out = run.Clone()
		return nil
	})
	return out, err
}

// newRun ingests the playlist and persists a PENDING run with a guarded order.
func (e *Engine) newRun(ctx context.Context, key models.RunKey, prev []string) (*models.Run, error) {
	list, err := e.source.PlaylistTracks(ctx, key.UserID, key.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist %s: %w", key.PlaylistID, err)
	}
	if len(list.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrEmptyPlaylist, key.PlaylistID)
	}

	order, attempts := e.guard.Reshuffle(list.URIs(), prev)
	run := models.NewRun(key, order)
	run.Excluded = list.Excluded
	for _, ex := range list.Excluded {
		if ex.URI != "" {
			run.Skip(ex.URI)
		}
	}

	if err := e.save(ctx, run); err != nil {
		return nil, err
	}
	e.runLogger(run).Info("created run", "tracks", len(order), "excluded", len(list.Excluded), "shuffle_attempts", attempts)
	return run, nil
}

func (e *Engine) save(ctx context.Context, run *models.Run) error {
	run.Touch()
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.runLogger(run).Error("failed to save run", "error", err)
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (e *Engine) runLogger(run *models.Run) *log.Logger {
	return shared.WithLogger(e.logger, "user", run.Key.UserID, "playlist", run.Key.PlaylistID, "run", run.ID)
}
