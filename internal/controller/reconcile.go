package controller

import (
	"context"
	"net/http"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

// step advances run by one iteration: device check, then a hard start when the run is starting or
// recovering from NO_DEVICE, otherwise a snapshot classified and acted on.
func (e *Engine) step(ctx context.Context, run *models.Run) {
	recovering := run.Status == models.StatusStarting || run.Status == models.StatusNoDevice
	if ok := e.checkDevice(ctx, run); !ok {
		return
	}

	if recovering {
		if err := e.start(ctx, run, max(run.Cursor, 0), true); err != nil {
			e.handle(run, err, transport.StartPlayback)
		}
		return
	}

	resp, err := e.exec.Execute(ctx, transport.Command{Kind: transport.GetPlaybackState, UserID: run.Key.UserID})
	if err != nil {
		e.handle(run, err, transport.GetPlaybackState)
		return
	}

	tolerance := e.pollInterval + endSlack
	decision := Classify(run, resp.State, tolerance)
	if resp.State != nil || decision.Action != ActionComplete {
		run.NowPlaying = resp.State.NowPlaying()
	}

	logger := e.runLogger(run)
	switch decision.Action {
	case ActionAdvance:
		logger.Debug("natural advance", "from", run.Cursor, "to", decision.Cursor, "passed", len(decision.Passed))
		run.Passed = append(run.Passed, decision.Passed...)
		run.Cursor = decision.Cursor
		if run.QueuedUntil < run.Cursor {
			run.QueuedUntil = run.Cursor
		}
		if err := e.fill(ctx, run); err != nil {
			e.handle(run, err, transport.Enqueue)
		}

	case ActionOverride:
		foreign := ""
		if resp.State != nil {
			foreign = resp.State.TrackURI
		}
		logger.Warn("foreign playback, overriding", "track", foreign, "cursor", run.Cursor)

		run.Status = models.StatusOverriding
		if err := e.save(ctx, run); err != nil {
			return
		}
		if err := e.start(ctx, run, max(run.Cursor, 0), false); err != nil {
			e.handle(run, err, transport.StartPlayback)
		}

	case ActionComplete:
		e.complete(run, decision.Reason)
	}
}

// checkDevice selects a usable device, moving run to NO_DEVICE when there is none.
func (e *Engine) checkDevice(ctx context.Context, run *models.Run) bool {
	resp, err := e.exec.Execute(ctx, transport.Command{Kind: transport.GetDevices, UserID: run.Key.UserID})
	if err != nil {
		e.handle(run, err, transport.GetDevices)
		return false
	}

	device := models.SelectDevice(resp.Devices)
	if device == nil {
		e.noDevice(run)
		return false
	}
	if run.DeviceID != device.ID {
		e.runLogger(run).Info("using device", "device", device.Name, "id", device.ID)
	}
	run.DeviceID = device.ID
	run.Message = ""
	return true
}

// start hard-starts order[idx] on the run's device and refills the buffer. Only a failed start is
// returned; fill failures are recorded on the run.
//
// Entries known to be unplayable are passed over; with none playable from idx the run completes.
// reset drops the queue watermark back to idx, for starts where the remote queue contents are unknown.
func (e *Engine) start(ctx context.Context, run *models.Run, idx int, reset bool) error {
	next := run.PlayableFrom(idx)
	if next < 0 {
		e.complete(run, "no playable entries left")
		return nil
	}
	if next > idx {
		e.runLogger(run).Debug("passing over unplayable entries", "from", idx, "to", next)
		run.Passed = append(run.Passed, run.Order[max(idx, run.Cursor+1):next]...)
		idx = next
	}

	resp, err := e.exec.Execute(ctx, transport.Command{
		Kind:     transport.StartPlayback,
		UserID:   run.Key.UserID,
		TrackURI: run.Order[idx],
		DeviceID: run.DeviceID,
	})
	if err != nil {
		return err
	}

	run.Cursor = idx
	if reset || resp.QueueCleared || run.QueuedUntil < idx {
		run.QueuedUntil = idx
	}
	run.Status = models.StatusPlaying
	run.Message = ""
	run.LastError = ""

	if err := e.fill(ctx, run); err != nil {
		e.handle(run, err, transport.Enqueue)
	}
	return nil
}

// handle records a command failure on run: fatal errors fail the run, a missing device parks it in
// NO_DEVICE, and anything else is retried on the next iteration.
func (e *Engine) handle(run *models.Run, err error, kind transport.Kind) {
	logger := e.runLogger(run)
	switch {
	case transport.IsFatal(err):
		e.fail(run, err)
	case transport.StatusCode(err) == http.StatusNotFound && kind != transport.GetPlaybackState:
		e.noDevice(run)
	case kind == transport.StartPlayback && transport.IsClientError(err):
		e.fail(run, err)
	default:
		logger.Warn("command failed, retrying next poll", "command", kind, "error", err)
		run.LastError = err.Error()
		if run.Status == models.StatusOverriding {
			// the next snapshot re-classifies and overrides again if needed
			run.Status = models.StatusPlaying
		}
	}
}

func (e *Engine) fail(run *models.Run, err error) {
	e.runLogger(run).Error("run failed", "error", err)
	run.Status = models.StatusFailed
	run.LastError = err.Error()
}

func (e *Engine) noDevice(run *models.Run) {
	if run.Status != models.StatusNoDevice {
		e.runLogger(run).Warn("no usable device")
	}
	run.Status = models.StatusNoDevice
	run.Message = NoDeviceMessage
}

func (e *Engine) complete(run *models.Run, reason string) {
	e.runLogger(run).Info("run completed", "reason", reason, "tracks", len(run.Order))
	run.Status = models.StatusCompleted
	run.Message = ""
}
