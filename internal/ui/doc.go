// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a small workflow around the playback engine:
//  1. [PlaylistListView] : Browse playlists; enter starts shuffled playback, c writes a shuffle copy
//  2. [PlayerView] : Monitor the run (now playing, progress, status) and steer it with next/reshuffle/stop
//  3. [CopyView] : Follow a shuffle copy through its progress updates
//  4. [ResultView] : Show the created playlist and any excluded entries
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// The player view polls the run on a tick; it never talks to the remote player directly, so every action goes through
// the engine's per-user critical section. Copy progress flows through a non-blocking channel from [tasks.Copier].
//
// Opened with [Options.Key], the model skips the list and only monitors that run, which is how `watch` attaches to the
// process running `play`.
package ui
