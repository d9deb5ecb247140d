// package models defines the data model for the trueshuffle playback engine
package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a [Run].
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusStarting   Status = "STARTING"
	StatusPlaying    Status = "PLAYING"
	StatusOverriding Status = "OVERRIDING"
	StatusNoDevice   Status = "NO_DEVICE"
	StatusStopped    Status = "STOPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var statuses = []Status{
	StatusPending, StatusStarting, StatusPlaying, StatusOverriding,
	StatusNoDevice, StatusStopped, StatusCompleted, StatusFailed,
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transitions happen without an explicit restart.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether a reconcile loop should be driving the run.
func (s Status) Active() bool {
	switch s {
	case StatusStarting, StatusPlaying, StatusOverriding, StatusNoDevice:
		return true
	}
	return false
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a stored or user-supplied status name, case-insensitively.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown run status: %q", value)
	}
	return s, nil
}

// Mode distinguishes live playback control from the one-shot playlist copy.
type Mode string

const (
	ModeController Mode = "controller"
	ModeUtility    Mode = "utility"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode converts a mode name, case-insensitively.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeController, ModeUtility:
		return m, nil
	}
	return "", fmt.Errorf("unknown run mode: %q", value)
}

// RunKey identifies a run. At most one non-terminal run exists per key.
type RunKey struct {
	UserID     string `json:"user_id"`
	PlaylistID string `json:"playlist_id"`
	Mode       Mode   `json:"mode"`
}

func (k RunKey) String() string {
	return k.UserID + "/" + k.PlaylistID + "/" + string(k.Mode)
}

// Validate checks that every component of the key is present.
func (k RunKey) Validate() error {
	if k.UserID == "" {
		return fmt.Errorf("run key: user ID is required")
	}
	if k.PlaylistID == "" {
		return fmt.Errorf("run key: playlist ID is required")
	}
	if _, err := ParseMode(string(k.Mode)); err != nil {
		return fmt.Errorf("run key: %w", err)
	}
	return nil
}
