// Package tasks runs one-shot playlist operations with real-time progress reporting.
//
// # Shuffle Copy
//
// [Copier.Copy] is the utility mode counterpart of the playback engine:
//
//  1. Fetches the playlist and filters it to playable, deduplicated tracks
//  2. Shuffles once through the similarity guard, against the previous copy's order if any
//  3. Creates a private playlist named "🔀 <name>"
//  4. Adds the tracks in batches of 100, persisting the run's cursor after each batch
//  5. Marks the utility run COMPLETED with the target playlist ID and excluded entries
//
// A copy interrupted during step 4 leaves a non-terminal run behind. The next Copy for the same
// playlist resumes it from the cursor instead of creating another playlist.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
