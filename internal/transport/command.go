package transport

import (
	"context"

	"github.com/desertthunder/trueshuffle/internal/models"
)

// Kind names a remote playback command.
type Kind int

const (
	GetDevices Kind = iota
	StartPlayback
	Enqueue
	GetPlaybackState
)

func (k Kind) String() string {
	switch k {
	case GetDevices:
		return "get_devices"
	case StartPlayback:
		return "start_playback"
	case Enqueue:
		return "enqueue"
	case GetPlaybackState:
		return "get_playback_state"
	default:
		return "unknown"
	}
}

// Command is one remote call. TrackURI is set for [StartPlayback] and [Enqueue].
type Command struct {
	Kind     Kind
	UserID   string
	TrackURI string
	DeviceID string
}

// Response carries the result of a [Command]; only the field matching its Kind is set.
type Response struct {
	Devices []models.Device
	// State is nil when nothing is playing.
	State *models.PlaybackState
	// QueueCleared is set by backends whose StartPlayback replaces the whole remote queue.
	QueueCleared bool
}

// Executor issues commands against a remote backend.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Response, error)
}

// ExecutorFunc adapts a function to [Executor].
type ExecutorFunc func(ctx context.Context, cmd Command) (*Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) (*Response, error) {
	return f(ctx, cmd)
}

// Middleware wraps an [Executor] with cross-cutting logic.
type Middleware func(next Executor) Executor

// Chain wraps exec with mws. The first middleware is the outermost:
//
//	Chain(exec, logging, retry, limit) executes as logging → retry → limit → exec
func Chain(exec Executor, mws ...Middleware) Executor {
	for i := len(mws) - 1; i >= 0; i-- {
		exec = mws[i](exec)
	}
	return exec
}
