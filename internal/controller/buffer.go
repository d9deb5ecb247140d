package controller

import (
	"context"
	"net/http"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

// fill tops up the remote queue to min(len(order)-1, cursor+buffer_size).
//
// Entries known to be unplayable consume their slot without a command; an entry the remote rejects as
// a bad request is recorded as unplayable. Any other failure stops the batch with queued_until at the
// last entry enqueued.
func (e *Engine) fill(ctx context.Context, run *models.Run) error {
	if run.QueuedUntil < run.Cursor {
		run.QueuedUntil = run.Cursor
	}
	target := min(len(run.Order)-1, run.Cursor+e.bufferSize)

	for i := run.QueuedUntil + 1; i <= target; i++ {
		id := run.Order[i]
		if run.IsSkipped(id) {
			run.QueuedUntil = i
			continue
		}

		_, err := e.exec.Execute(ctx, transport.Command{
			Kind:     transport.Enqueue,
			UserID:   run.Key.UserID,
			TrackURI: id,
			DeviceID: run.DeviceID,
		})
		if err != nil {
			if transport.IsClientError(err) && transport.StatusCode(err) != http.StatusNotFound {
				e.runLogger(run).Warn("track rejected by remote, skipping", "track", id, "error", err)
				run.Skip(id)
				run.QueuedUntil = i
				continue
			}
			return err
		}
		run.QueuedUntil = i
	}
	return nil
}
