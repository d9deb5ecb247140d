package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/transport"
	"github.com/fhs/gompd/v2/mpd"
)

// MPDConn is the subset of [mpd.Client] used by [MPDPlayer].
type MPDConn interface {
	Ping() error
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Play(pos int) error
	ListPlaylists() ([]mpd.Attrs, error)
	PlaylistContents(name string) ([]mpd.Attrs, error)
	PlaylistAdd(name, uri string) error
	Close() error
}

// MPDDialer opens a connection to the daemon.
type MPDDialer func(addr, password string) (MPDConn, error)

// DialMPD connects with gompd, authenticating when a password is set.
func DialMPD(addr, password string) (MPDConn, error) {
	var (
		client *mpd.Client
		err    error
	)
	if password != "" {
		client, err = mpd.DialAuthenticated("tcp", addr, password)
	} else {
		client, err = mpd.Dial("tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// MPDPlayer drives a Music Player Daemon queue. Track identifiers are MPD song URIs (file paths or stream URLs).
//
// The daemon is reported as a single device. Starting playback clears the daemon's queue.
type MPDPlayer struct {
	addr     string
	password string
	dial     MPDDialer
	logger   *log.Logger

	mu   sync.Mutex
	conn MPDConn
}

// NewMPDPlayer creates a [transport.Executor] for the daemon at addr. dial defaults to [DialMPD].
func NewMPDPlayer(cfg shared.MPDConfig, dial MPDDialer, logger *log.Logger) *MPDPlayer {
	if dial == nil {
		dial = DialMPD
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &MPDPlayer{addr: cfg.Address, password: cfg.Password, dial: dial, logger: logger}
}

// Execute implements [transport.Executor].
func (p *MPDPlayer) Execute(ctx context.Context, cmd transport.Command) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.ensureConnected()
	if err != nil {
		if cmd.Kind == transport.GetDevices {
			// an unreachable daemon is simply no device
			p.logger.Debug("mpd unreachable", "addr", p.addr, "error", err)
			return &transport.Response{Devices: []models.Device{}}, nil
		}
		return nil, err
	}

	resp, err := p.execute(conn, cmd)
	if err != nil {
		return nil, p.classify(err)
	}
	return resp, nil
}

// Close drops the connection.
func (p *MPDPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// do runs fn on the open connection under the player's lock.
func (p *MPDPlayer) do(ctx context.Context, fn func(MPDConn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.ensureConnected()
	if err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		return p.classify(err)
	}
	return nil
}

func (p *MPDPlayer) execute(conn MPDConn, cmd transport.Command) (*transport.Response, error) {
	switch cmd.Kind {
	case transport.GetDevices:
		return &transport.Response{Devices: []models.Device{p.device()}}, nil

	case transport.StartPlayback:
		if err := conn.Clear(); err != nil {
			return nil, err
		}
		if err := conn.Add(cmd.TrackURI); err != nil {
			return nil, err
		}
		if err := conn.Play(0); err != nil {
			return nil, err
		}
		return &transport.Response{QueueCleared: true}, nil

	case transport.Enqueue:
		if err := conn.Add(cmd.TrackURI); err != nil {
			return nil, err
		}
		return &transport.Response{}, nil

	case transport.GetPlaybackState:
		status, err := conn.Status()
		if err != nil {
			return nil, err
		}
		song, err := conn.CurrentSong()
		if err != nil {
			return nil, err
		}
		state := stateFromAttrs(status, song)
		if state != nil {
			state.DeviceID = p.addr
		}
		return &transport.Response{State: state}, nil

	default:
		return nil, fmt.Errorf("%w: command %s", transport.ErrClientError, cmd.Kind)
	}
}

// ensureConnected reuses the open connection while it answers pings, reconnecting otherwise.
func (p *MPDPlayer) ensureConnected() (MPDConn, error) {
	if p.conn != nil {
		if err := p.conn.Ping(); err == nil {
			return p.conn, nil
		}
		p.logger.Warn("mpd connection lost, reconnecting", "addr", p.addr)
		p.conn.Close()
		p.conn = nil
	}

	conn, err := p.dial(p.addr, p.password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpd at %s: %w", p.addr, err)
	}
	p.conn = conn
	return conn, nil
}

// classify maps daemon replies onto the transport's error model: connection failures stay
// transient, protocol errors (ACK replies, e.g. an unknown song URI) become a 400.
func (p *MPDPlayer) classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("mpd connection failed: %w", err)
	}
	return &transport.StatusError{Status: http.StatusBadRequest, Body: err.Error()}
}

func (p *MPDPlayer) device() models.Device {
	return models.Device{ID: p.addr, Name: "MPD " + p.addr, Type: "Server", IsActive: true}
}

// stateFromAttrs builds playback state from MPD "status" and "currentsong" replies.
// It returns nil when the daemon is stopped with nothing selected.
func stateFromAttrs(status, song mpd.Attrs) *models.PlaybackState {
	file := song["file"]
	if file == "" {
		return nil
	}

	state := &models.PlaybackState{
		TrackURI:  file,
		Name:      song["Title"],
		Artist:    song["Artist"],
		Album:     song["Album"],
		IsPlaying: status["state"] == "play",
	}
	if state.Name == "" {
		state.Name = file
	}

	if status["state"] == "stop" {
		state.ProgressMS = 0
	} else {
		state.ProgressMS = secondsToMS(status["elapsed"])
	}

	state.DurationMS = secondsToMS(status["duration"])
	if state.DurationMS == 0 {
		state.DurationMS = secondsToMS(song["duration"])
	}
	if state.DurationMS == 0 {
		state.DurationMS = secondsToMS(song["Time"])
	}
	return state
}

func secondsToMS(v string) int {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return int(secs * 1000)
}
