package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRateLimitExhausted   = errors.New("rate limit retries exhausted")
	ErrServerErrorExhausted = errors.New("server error retries exhausted")
	ErrUnauthorized         = errors.New("unauthorized: re-authentication required")
	ErrAuthExpired          = errors.New("credential refresh failed")
	ErrClientError          = errors.New("remote rejected request")
)

// StatusError is a non-2xx reply from the remote.
type StatusError struct {
	Status int
	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("remote returned %d %s", e.Status, http.StatusText(e.Status))
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is absent or unparseable.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsFatal reports whether err ends a run: retries exhausted or credentials unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRateLimitExhausted) ||
		errors.Is(err, ErrServerErrorExhausted) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAuthExpired)
}

// IsClientError reports whether err is a non-retryable 4xx rejection.
func IsClientError(err error) bool {
	if errors.Is(err, ErrClientError) {
		return true
	}
	code := StatusCode(err)
	return code >= 400 && code < 500 && code != http.StatusUnauthorized && code != http.StatusTooManyRequests
}
