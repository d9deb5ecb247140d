package controller

import (
	"slices"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
)

// Action is the outcome of classifying one observation.
type Action int

const (
	ActionNone Action = iota
	ActionAdvance
	ActionOverride
	ActionComplete
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionOverride:
		return "override"
	case ActionComplete:
		return "complete"
	default:
		return "none"
	}
}

// endSlack is how close to the end a paused last track must be to count as finished.
const endSlack = 2 * time.Second

// Decision is what the loop should do about one observation.
type Decision struct {
	Action Action
	// Cursor is the new cursor for [ActionAdvance].
	Cursor int
	// Passed lists order entries jumped over by a multi-step advance.
	Passed []string
	Reason string
}

// Classify decides how to react to the reported playback state.
//
// state is nil when nothing is playing. tolerance is how far from the end the last track may have been
// on the previous poll and still count as played out, normally the poll interval plus a small slack.
func Classify(run *models.Run, state *models.PlaybackState, tolerance time.Duration) Decision {
	if len(run.Order) == 0 {
		return Decision{Action: ActionComplete, Reason: "empty order"}
	}
	if finished(run, state, tolerance) {
		return Decision{Action: ActionComplete, Reason: "last track played out"}
	}
	if state == nil || state.TrackURI == "" {
		return Decision{Action: ActionNone, Reason: "nothing playing"}
	}

	idx := run.IndexOf(state.TrackURI)
	window := max(run.QueuedUntil, run.Cursor+1)

	switch {
	case idx >= 0 && idx == run.Cursor:
		return Decision{Action: ActionNone, Reason: "no movement"}
	case idx > run.Cursor && idx <= window:
		return Decision{
			Action: ActionAdvance,
			Cursor: idx,
			Passed: slices.Clone(run.Order[run.Cursor+1 : idx]),
			Reason: "natural advance",
		}
	case !state.IsPlaying:
		return Decision{Action: ActionNone, Reason: "foreign track paused"}
	default:
		return Decision{Action: ActionOverride, Reason: "foreign track"}
	}
}

// finished reports whether the final playable entry has played to completion.
func finished(run *models.Run, state *models.PlaybackState, tolerance time.Duration) bool {
	if !run.IsLast() {
		return false
	}
	last := run.Current()

	if state != nil && state.TrackURI == last && !state.IsPlaying &&
		state.DurationMS > 0 && ms(state.ProgressMS) >= ms(state.DurationMS)-endSlack {
		return true
	}

	prev := run.NowPlaying
	nearEnd := prev != nil && prev.URI == last && prev.DurationMS > 0 &&
		ms(prev.ProgressMS) >= ms(prev.DurationMS)-tolerance
	if !nearEnd {
		return false
	}

	switch {
	case state == nil || state.TrackURI == "":
		return true
	case state.TrackURI != last:
		return true
	case state.ProgressMS < prev.ProgressMS:
		return true
	}
	return false
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
