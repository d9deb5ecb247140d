package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trueshuffle/internal/formatter"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	PlayerView
	CopyView
	ResultView
)

// Library lists the playlists offered for playback.
type Library interface {
	Playlists(ctx context.Context, userID string) ([]models.Playlist, error)
}

// Controller acts on an existing run.
type Controller interface {
	AdvanceManual(ctx context.Context, key models.RunKey) (*models.Run, error)
	ReshuffleNow(ctx context.Context, key models.RunKey) (*models.Run, error)
	Stop(ctx context.Context, key models.RunKey) (*models.Run, error)
	GetStatus(ctx context.Context, key models.RunKey) (*models.Run, error)
}

// Starter starts or resumes a run.
type Starter interface {
	StartOrResume(ctx context.Context, key models.RunKey) (*models.Run, error)
}

// Copier writes a shuffled copy of a playlist.
type Copier interface {
	Copy(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID, playlistID string) (*tasks.CopyResult, error)
}

// Options wires a [Model].
//
// With Key set the model opens directly on that run and only monitors it; otherwise it starts on the
// playlist list and needs Library and Starter.
type Options struct {
	UserID       string
	Library      Library
	Controller   Controller
	Starter      Starter
	Copier       Copier
	Key          *models.RunKey
	PollInterval time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	opts     Options
	view     ViewState
	width    int
	height   int
	list     list.Model
	ready    bool
	selected models.Playlist
	key      models.RunKey
	run      *models.Run
	busy     bool

	progressChan chan tasks.ProgressUpdate
	doneChan     chan copyResult
	progress     tasks.ProgressUpdate
	result       *tasks.CopyResult

	err  error
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	m := &Model{
		ctx:  ctx,
		opts: opts,
		view: PlaylistListView,
		help: help.New(),
		keys: newKeyMap(),
	}
	if opts.Key != nil {
		m.key = *opts.Key
		m.selected = models.Playlist{ID: opts.Key.PlaylistID, Name: opts.Key.PlaylistID}
		m.view = PlayerView
	}
	return m
}

// Init fetches playlists, or the watched run's status.
func (m *Model) Init() tea.Cmd {
	if m.view == PlayerView {
		return tea.Batch(m.fetchStatus(), m.tick())
	}
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.ready {
			m.list.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case PlayerView:
			return m.handlePlayerKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case CopyView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == PlaylistListView && m.ready {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsResult)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.list = list.New(items, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
		m.list.Title = "🔀 Spotify Playlists"
		m.ready = true
		return m, nil

	case MsgRunUpdated:
		data := msg.data.(runResult)
		m.busy = false
		m.err = data.err
		if data.run != nil {
			m.run = data.run
		}
		return m, nil

	case MsgTick:
		if m.view != PlayerView {
			return m, nil
		}
		if m.busy {
			return m, m.tick()
		}
		return m, tea.Batch(m.fetchStatus(), m.tick())

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgCopyComplete:
		data := msg.data.(copyResult)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.doneChan = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case PlayerView:
		return m.renderPlayer()
	case CopyView:
		return m.renderCopy()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.ready {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.list.SelectedItem().(playlistItem); ok && m.opts.Starter != nil {
			m.selected = pl.playlist
			m.key = models.RunKey{UserID: m.opts.UserID, PlaylistID: pl.playlist.ID, Mode: models.ModeController}
			m.run = nil
			m.err = nil
			m.busy = true
			m.view = PlayerView
			return m, tea.Batch(m.act(m.opts.Starter.StartOrResume), m.tick())
		}
		return m, nil
	case key.Matches(msg, m.keys.copy):
		if pl, ok := m.list.SelectedItem().(playlistItem); ok && m.opts.Copier != nil {
			m.selected = pl.playlist
			m.err = nil
			m.view = CopyView
			return m, m.startCopy()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.opts.Key == nil {
			m.view = PlaylistListView
			m.err = nil
		}
		return m, nil
	}

	if m.busy || m.opts.Controller == nil {
		return m, nil
	}

	var op func(context.Context, models.RunKey) (*models.Run, error)
	switch {
	case key.Matches(msg, m.keys.next):
		op = m.opts.Controller.AdvanceManual
	case key.Matches(msg, m.keys.reshuffle):
		op = m.opts.Controller.ReshuffleNow
	case key.Matches(msg, m.keys.stop):
		op = m.opts.Controller.Stop
	case key.Matches(msg, m.keys.enter):
		if m.opts.Starter != nil && m.run != nil && !m.run.Status.Active() {
			op = m.opts.Starter.StartOrResume
		}
	}
	if op == nil {
		return m, nil
	}
	m.busy = true
	return m, m.act(op)
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
	}
	return m, nil
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		if m.opts.Library == nil {
			return playlistsFetchedMsg(nil, fmt.Errorf("no playlist library configured"))
		}
		playlists, err := m.opts.Library.Playlists(m.ctx, m.opts.UserID)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchStatus() tea.Cmd {
	if m.opts.Controller == nil {
		return nil
	}
	return m.act(m.opts.Controller.GetStatus)
}

func (m *Model) act(op func(context.Context, models.RunKey) (*models.Run, error)) tea.Cmd {
	runKey := m.key
	return func() tea.Msg {
		run, err := op(m.ctx, runKey)
		return runUpdatedMsg(run, err)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg {
		return tickMsg()
	})
}

func (m *Model) startCopy() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan copyResult, 1)
	m.progressChan = progress
	m.doneChan = done
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}

	copier, userID, playlistID := m.opts.Copier, m.opts.UserID, m.selected.ID
	go func() {
		result, err := copier.Copy(m.ctx, progress, userID, playlistID)
		done <- copyResult{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			res := <-done
			return copyCompleteMsg(res.result, res.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if !m.ready {
		return styles.dim.Render("Loading playlists...")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.copy, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
}

func (m *Model) renderPlayer() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("🔀 " + m.selected.Name))
	b.WriteString("\n")

	run := m.run
	if run == nil {
		if m.err != nil {
			b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(styles.dim.Render("Starting..."))
		}
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
		return b.String()
	}

	b.WriteString(styles.status(run.Status).Render(run.Status.String()))
	fmt.Fprintf(&b, "  track %s\n\n", formatter.Progress(run))

	if np := run.NowPlaying; np != nil && np.URI != "" {
		icon := "▶"
		if !np.IsPlaying {
			icon = "⏸"
		}
		fmt.Fprintf(&b, "%s %s\n", icon, np.Name)
		if np.Artist != "" {
			b.WriteString(styles.dim.Render("  "+np.Artist) + "\n")
		}
		fmt.Fprintf(&b, "  %s %s / %s\n", progressBar(np.ProgressMS, np.DurationMS, 30),
			formatter.FormatDuration(np.ProgressMS), formatter.FormatDuration(np.DurationMS))
	} else {
		b.WriteString(styles.dim.Render("Nothing playing") + "\n")
	}

	if next := run.Next(); next != "" {
		b.WriteString("\n" + styles.dim.Render("Up next: "+next) + "\n")
	}
	if run.Message != "" {
		b.WriteString("\n" + styles.warn.Render(run.Message) + "\n")
	}
	if run.LastError != "" {
		b.WriteString("\n" + styles.err.Render("Last error: "+run.LastError) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}

	bindings := []key.Binding{m.keys.next, m.keys.reshuffle, m.keys.stop}
	if m.opts.Starter != nil && !run.Status.Active() {
		bindings = append(bindings, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "resume")))
	}
	if m.opts.Key == nil {
		bindings = append(bindings, m.keys.back)
	}
	bindings = append(bindings, m.keys.quit)
	b.WriteString("\n" + m.help.ShortHelpView(bindings))
	return b.String()
}

func (m *Model) renderCopy() string {
	title := styles.title.Render(fmt.Sprintf("Shuffling '%s' into a new playlist", m.selected.Name))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSource:
		phase = "Fetching source playlist..."
	case tasks.Shuffle:
		phase = "Shuffling..."
	case tasks.CreatePlaylist:
		phase = "Creating playlist..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding tracks %s", progressBar(m.progress.Step, m.progress.Total, 30))
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.dim.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Shuffle copy failed: %v\n\nRun it again to resume. Press esc to go back, q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Shuffle Copy Complete!")
	info := fmt.Sprintf("\nSource: %s\nCopy: %s (%s)\nTracks: %d", m.selected.Name, m.result.Target.Name, m.result.Target.ID, m.result.Tracks)
	if m.result.Resumed {
		info += "\nResumed an interrupted copy"
	}

	var excluded string
	if len(m.result.Excluded) > 0 {
		excluded = "\n\n" + styles.warn.Render(fmt.Sprintf("Left out %d entries:", len(m.result.Excluded)))
		for _, ex := range m.result.Excluded {
			excluded += fmt.Sprintf("\n  • %s (%s)", ex.Name, ex.Reason)
		}
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, excluded, helpView)
}

// progressBar renders done/total as a fixed-width bar.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(max(done*width/total, 0), width)
	}
	return styles.bar.Render(strings.Repeat("█", filled)) + styles.dim.Render(strings.Repeat("░", width-filled))
}
