package models

import (
	"fmt"
	"slices"
	"time"
)

// NowPlaying is the display snapshot recorded on each poll.
type NowPlaying struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	ImageURL   string `json:"image_url"`
	ProgressMS int    `json:"progress_ms"`
	DurationMS int    `json:"duration_ms"`
	IsPlaying  bool   `json:"is_playing"`
}

// Run is the authoritative state of one shuffled session.
//
// Cursor is the index of the last track confirmed played (-1 before anything plays).
// QueuedUntil is the index up to which the remote queue has been populated.
type Run struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Key      RunKey `json:"key"`

	Order       []string `json:"order"`
	Cursor      int      `json:"cursor"`
	QueuedUntil int      `json:"queued_until"`
	Status      Status   `json:"status"`

	// Skipped holds identifiers known to be unplayable, kept sorted.
	Skipped []string `json:"skipped,omitempty"`
	// Passed holds order entries jumped over by a multi-step skip.
	Passed   []string        `json:"passed,omitempty"`
	Excluded []ExcludedTrack `json:"excluded,omitempty"`

	DeviceID         string      `json:"device_id,omitempty"`
	LastError        string      `json:"last_error,omitempty"`
	Message          string      `json:"message,omitempty"`
	NowPlaying       *NowPlaying `json:"now_playing,omitempty"`
	TargetPlaylistID string      `json:"target_playlist_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun creates a PENDING run for key with nothing played or queued.
func NewRun(key RunKey, order []string) *Run {
	now := time.Now()
	return &Run{
		Key:         key,
		Order:       slices.Clone(order),
		Cursor:      -1,
		QueuedUntil: -1,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy safe to hand to callers outside the engine.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	c.Order = slices.Clone(r.Order)
	c.Skipped = slices.Clone(r.Skipped)
	c.Passed = slices.Clone(r.Passed)
	c.Excluded = slices.Clone(r.Excluded)
	if r.NowPlaying != nil {
		np := *r.NowPlaying
		c.NowPlaying = &np
	}
	return &c
}

// Current returns the identifier at the cursor, or "" before playback.
func (r *Run) Current() string {
	if r.Cursor < 0 || r.Cursor >= len(r.Order) {
		return ""
	}
	return r.Order[r.Cursor]
}

// Next returns the identifier after the cursor, or "" when the order is exhausted.
func (r *Run) Next() string {
	if r.Cursor+1 >= len(r.Order) {
		return ""
	}
	return r.Order[r.Cursor+1]
}

// IndexOf returns the position of id in the order, or -1.
func (r *Run) IndexOf(id string) int {
	return slices.Index(r.Order, id)
}

// IsLast reports whether the cursor sits on the final playable entry, with every entry after it
// known to be unplayable.
func (r *Run) IsLast() bool {
	return r.Cursor >= 0 && r.Cursor < len(r.Order) && r.PlayableFrom(r.Cursor+1) < 0
}

// PlayableFrom returns the first position at or after i whose entry is not skipped, or -1.
func (r *Run) PlayableFrom(i int) int {
	for j := max(i, 0); j < len(r.Order); j++ {
		if !r.IsSkipped(r.Order[j]) {
			return j
		}
	}
	return -1
}

// IsSkipped reports whether id is recorded as unplayable.
func (r *Run) IsSkipped(id string) bool {
	_, found := slices.BinarySearch(r.Skipped, id)
	return found
}

// Skip records id as unplayable.
func (r *Run) Skip(id string) {
	i, found := slices.BinarySearch(r.Skipped, id)
	if !found {
		r.Skipped = slices.Insert(r.Skipped, i, id)
	}
}

// Touch bumps UpdatedAt.
func (r *Run) Touch() {
	r.UpdatedAt = time.Now()
}

// Validate checks the structural invariants of the run.
func (r *Run) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status: %q", r.Status)
	}

	seen := make(map[string]struct{}, len(r.Order))
	for i, id := range r.Order {
		if id == "" {
			return fmt.Errorf("order entry %d is empty", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate order entry: %s", id)
		}
		seen[id] = struct{}{}
	}

	if r.Cursor < -1 || r.Cursor >= len(r.Order) {
		return fmt.Errorf("cursor %d out of range for %d entries", r.Cursor, len(r.Order))
	}
	if r.QueuedUntil < r.Cursor {
		return fmt.Errorf("queued_until %d is behind cursor %d", r.QueuedUntil, r.Cursor)
	}
	if r.QueuedUntil >= len(r.Order) {
		return fmt.Errorf("queued_until %d out of range for %d entries", r.QueuedUntil, len(r.Order))
	}

	return nil
}
