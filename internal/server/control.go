package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/controller"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
)

// Controller is the set of run operations reachable over the control endpoint.
//
// [controller.Engine] implements it in the process driving playback; [ControlClient] implements it
// in every other process.
type Controller interface {
	AdvanceManual(ctx context.Context, key models.RunKey) (*models.Run, error)
	ReshuffleNow(ctx context.Context, key models.RunKey) (*models.Run, error)
	Stop(ctx context.Context, key models.RunKey) (*models.Run, error)
	GetStatus(ctx context.Context, key models.RunKey) (*models.Run, error)
}

var _ Controller = (*controller.Engine)(nil)
var _ Controller = (*ControlClient)(nil)

// ControlHandler exposes a [Controller] as JSON over HTTP.
//
// Every route takes the run through the user_id and playlist_id query parameters.
type ControlHandler struct {
	ctrl   Controller
	logger *log.Logger
}

// NewControlHandler creates a [ControlHandler] serving ctrl.
func NewControlHandler(ctrl Controller, logger *log.Logger) *ControlHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ControlHandler{ctrl: ctrl, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ControlHandler) Routes() []string {
	return []string{
		"GET /health",
		"GET /runs/status",
		"POST /runs/next",
		"POST /runs/reshuffle",
		"POST /runs/stop",
	}
}

func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	key := models.RunKey{
		UserID:     r.URL.Query().Get("user_id"),
		PlaylistID: r.URL.Query().Get("playlist_id"),
		Mode:       models.ModeController,
	}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var op func(context.Context, models.RunKey) (*models.Run, error)
	switch strings.TrimPrefix(r.URL.Path, "/runs/") {
	case "status":
		op = h.ctrl.GetStatus
	case "next":
		op = h.ctrl.AdvanceManual
	case "reshuffle":
		op = h.ctrl.ReshuffleNow
	case "stop":
		op = h.ctrl.Stop
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown operation %s", r.URL.Path))
		return
	}

	run, err := op(r.Context(), key)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("control request failed", "path", r.URL.Path, "run", key, "error", err)
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrRunInactive):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ControlClient calls the control endpoint of the process driving playback.
type ControlClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewControlClient creates a client for the control endpoint listening on addr (host:port).
func NewControlClient(addr string, httpClient *http.Client) *ControlClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &ControlClient{baseURL: strings.TrimRight(base, "/"), httpClient: httpClient}
}

// Ping reports whether a control endpoint is listening. Errors wrap [shared.ErrServiceUnavailable].
func (c *ControlClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *ControlClient) AdvanceManual(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return c.do(ctx, http.MethodPost, "next", key)
}

func (c *ControlClient) ReshuffleNow(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return c.do(ctx, http.MethodPost, "reshuffle", key)
}

func (c *ControlClient) Stop(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return c.do(ctx, http.MethodPost, "stop", key)
}

func (c *ControlClient) GetStatus(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return c.do(ctx, http.MethodGet, "status", key)
}

func (c *ControlClient) do(ctx context.Context, method, op string, key models.RunKey) (*models.Run, error) {
	query := url.Values{}
	query.Set("user_id", key.UserID)
	query.Set("playlist_id", key.PlaylistID)

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/runs/"+op+"?"+query.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorBody
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, statusError(resp.StatusCode, e.Error)
	}

	var run models.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &run, nil
}

func statusError(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", controller.ErrRunInactive, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("%w: control endpoint returned %d: %s", shared.ErrAPIRequest, status, msg)
	}
}
