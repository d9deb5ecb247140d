package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Policy bounds retries of a single command.
type Policy struct {
	// MaxAttempts counts every try including the first. A credential refresh after a 401 is not an attempt.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// JitterMax is the upper bound of the random delay added to every wait.
	JitterMax time.Duration
	// RetryAfterDefault is used when a 429 carries no usable Retry-After header.
	RetryAfterDefault time.Duration
}

// DefaultPolicy returns three attempts with 500ms exponential backoff capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BackoffBase:       500 * time.Millisecond,
		BackoffCap:        30 * time.Second,
		JitterMax:         500 * time.Millisecond,
		RetryAfterDefault: time.Second,
	}
}

// Backoff returns BackoffBase * 2^(attempt-1), capped at BackoffCap. Attempt is 1-indexed.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.BackoffBase) * math.Pow(2, float64(attempt-1)))
	if p.BackoffCap > 0 && (d > p.BackoffCap || d < 0) {
		return p.BackoffCap
	}
	return d
}

// Refresher renews the credential for a user after the remote rejected it.
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// Retrier applies a [Policy] to an [Executor].
type Retrier struct {
	Policy    Policy
	Clock     Clock
	Refresher Refresher
	Logger    *log.Logger
	// Jitter returns a random duration in [0, max]. Defaults to a uniform draw.
	Jitter func(max time.Duration) time.Duration
}

// WithRetry returns middleware retrying transient failures per policy.
// refresher may be nil, in which case the first 401 surfaces as [ErrUnauthorized].
func WithRetry(policy Policy, refresher Refresher, clock Clock, logger *log.Logger) Middleware {
	r := &Retrier{Policy: policy, Clock: clock, Refresher: refresher, Logger: logger}
	return r.Middleware
}

// Middleware wraps next with the retry loop.
func (r *Retrier) Middleware(next Executor) Executor {
	return ExecutorFunc(func(ctx context.Context, cmd Command) (*Response, error) {
		return r.Do(ctx, cmd, next)
	})
}

// Do executes cmd through next, retrying per the policy.
func (r *Retrier) Do(ctx context.Context, cmd Command, next Executor) (*Response, error) {
	clock := r.Clock
	if clock == nil {
		clock = RealClock()
	}
	maxAttempts := max(r.Policy.MaxAttempts, 1)

	refreshed := false
	attempt := 0
	for {
		attempt++
		resp, err := next.Execute(ctx, cmd)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrAuthExpired) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		var wait time.Duration
		var se *StatusError
		switch {
		case errors.As(err, &se) && se.Status == http.StatusUnauthorized:
			if refreshed || r.Refresher == nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnauthorized, cmd.Kind, err)
			}
			refreshed = true
			if rerr := r.Refresher.Refresh(ctx, cmd.UserID); rerr != nil {
				if errors.Is(rerr, ErrAuthExpired) {
					return nil, rerr
				}
				return nil, fmt.Errorf("%w: %w", ErrAuthExpired, rerr)
			}
			r.logf("credential refreshed after 401", cmd, attempt, 0, err)
			attempt--
			continue

		case se != nil && se.Status == http.StatusTooManyRequests:
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRateLimitExhausted, cmd.Kind, attempt, err)
			}
			wait = se.RetryAfter
			if wait <= 0 {
				wait = r.Policy.RetryAfterDefault
			}
			wait += r.jitter()

		case se != nil && se.Status >= 500:
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrServerErrorExhausted, cmd.Kind, attempt, err)
			}
			wait = r.Policy.Backoff(attempt) + r.jitter()

		case se != nil:
			return nil, fmt.Errorf("%w: %s: %w", ErrClientError, cmd.Kind, err)

		default:
			// transport-level failure (connection reset, DNS, timeout): treated like a 5xx
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrServerErrorExhausted, cmd.Kind, attempt, err)
			}
			wait = r.Policy.Backoff(attempt) + r.jitter()
		}

		r.logf("retrying command", cmd, attempt, wait, err)
		if err := clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (r *Retrier) jitter() time.Duration {
	if r.Policy.JitterMax <= 0 {
		return 0
	}
	if r.Jitter != nil {
		return r.Jitter(r.Policy.JitterMax)
	}
	return rand.N(r.Policy.JitterMax + 1)
}

func (r *Retrier) logf(msg string, cmd Command, attempt int, wait time.Duration, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, "command", cmd.Kind, "user", cmd.UserID, "attempt", attempt, "wait", wait, "error", err)
}
