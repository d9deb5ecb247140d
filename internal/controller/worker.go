package controller

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
)

func (e *Engine) spawn(key models.RunKey) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.workers[key]; ok {
		old.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	e.workers[key] = w

	go e.loop(ctx, key, w)
}

func (e *Engine) running(key models.RunKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.workers[key]
	if !ok {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// halt cancels the loop for key and waits for it to exit.
func (e *Engine) halt(ctx context.Context, key models.RunKey) error {
	e.mu.Lock()
	w, ok := e.workers[key]
	if ok {
		w.cancel()
		delete(e.workers, key)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loop(ctx context.Context, key models.RunKey, w *worker) {
	defer close(w.done)
	defer func() {
		e.mu.Lock()
		if e.workers[key] == w {
			delete(e.workers, key)
		}
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		run, err := e.Poll(ctx, key)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, shared.ErrRunNotFound):
			e.logger.Warn("run disappeared, stopping loop", "key", key)
			return
		case err != nil:
			e.logger.Error("poll failed", "key", key, "error", err)
		case !run.Status.Active():
			e.logger.Info("loop finished", "key", key, "status", run.Status)
			return
		}
	}
}
