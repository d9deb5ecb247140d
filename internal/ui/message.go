package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgRunUpdated
	MsgTick
	MsgProgressUpdate
	MsgCopyComplete
)

type playlistsResult struct {
	playlists []models.Playlist
	err       error
}

type runResult struct {
	run *models.Run
	err error
}

type copyResult struct {
	result *tasks.CopyResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsResult{playlists, err}}
}

// runUpdatedMsg is the constructor for [MsgRunUpdated]
func runUpdatedMsg(run *models.Run, err error) Msg {
	return Msg{kind: MsgRunUpdated, data: runResult{run, err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// copyCompleteMsg is the constructor for [MsgCopyComplete]
func copyCompleteMsg(result *tasks.CopyResult, err error) Msg {
	return Msg{kind: MsgCopyComplete, data: copyResult{result, err}}
}
