package transport

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// WithRateLimit returns middleware that waits on limiter before every attempt.
// A nil limiter disables limiting.
func WithRateLimit(limiter *rate.Limiter) Middleware {
	return func(next Executor) Executor {
		if limiter == nil {
			return next
		}
		return ExecutorFunc(func(ctx context.Context, cmd Command) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next.Execute(ctx, cmd)
		})
	}
}

// NewLimiter builds a token bucket allowing perSecond requests with the given burst.
// A non-positive rate returns nil.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}

// WithTimeout returns middleware bounding each attempt by d. Non-positive d disables it.
func WithTimeout(d time.Duration) Middleware {
	return func(next Executor) Executor {
		if d <= 0 {
			return next
		}
		return ExecutorFunc(func(ctx context.Context, cmd Command) (*Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Execute(ctx, cmd)
		})
	}
}

// WithLogging returns middleware tracing each command at debug level.
func WithLogging(logger *log.Logger) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, cmd Command) (*Response, error) {
			start := time.Now()
			resp, err := next.Execute(ctx, cmd)
			if err != nil {
				logger.Debug("command failed", "command", cmd.Kind, "user", cmd.UserID, "track", cmd.TrackURI, "took", time.Since(start), "error", err)
				return nil, err
			}
			logger.Debug("command done", "command", cmd.Kind, "user", cmd.UserID, "track", cmd.TrackURI, "took", time.Since(start))
			return resp, nil
		})
	}
}
