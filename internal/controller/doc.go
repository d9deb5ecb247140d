// Package controller drives shuffled playback on a remote device.
//
// The [Engine] owns one play order and cursor per [models.RunKey], keeps the remote queue topped up a
// few tracks past the cursor, and polls remote playback state on a fixed interval. Each observation is
// run through [Classify], a pure function deciding between no change, a natural advance, a hard override
// of foreign playback, and completion.
//
// Every iteration, and every user-triggered action, is one load-modify-save section inside
// [transport.Serializer.WithLock] keyed by user, so commands for a user never overlap and state is
// never lost between the loop and a concurrent request.
package controller
