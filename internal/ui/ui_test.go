package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/tasks"
	tu "github.com/desertthunder/trueshuffle/internal/testing"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	run   *models.Run
}

func newFakeController() *fakeController {
	run := models.NewRun(models.RunKey{UserID: "u1", PlaylistID: "p1", Mode: models.ModeController}, []string{"a", "b", "c"})
	run.ID = "run-1"
	run.Status = models.StatusPlaying
	run.Cursor = 0
	run.NowPlaying = &models.NowPlaying{URI: "a", Name: "Song A", Artist: "Artist A", ProgressMS: 30000, DurationMS: 120000, IsPlaying: true}
	return &fakeController{run: run}
}

func (f *fakeController) record(name string) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.run.Clone(), nil
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) AdvanceManual(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return f.record("next")
}

func (f *fakeController) ReshuffleNow(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return f.record("reshuffle")
}

func (f *fakeController) Stop(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return f.record("stop")
}

func (f *fakeController) GetStatus(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return f.record("status")
}

func (f *fakeController) StartOrResume(ctx context.Context, key models.RunKey) (*models.Run, error) {
	return f.record("start")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// first runs cmd and, for a batch, only its first command, which is never the poll tick.
func first(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		return batch[0]()
	}
	return msg
}

func newTestModel(t *testing.T) (*Model, *fakeController) {
	t.Helper()
	lib := tu.NewFakeLibrary()
	lib.AddPlaylist("p1", "Road Trip", "a", "b", "c")
	lib.AddPlaylist("p2", "Focus", "x", "y")
	ctrl := newFakeController()

	m := NewModel(context.Background(), Options{
		UserID:     "u1",
		Library:    lib,
		Controller: ctrl,
		Starter:    ctrl,
		Copier:     tasks.NewCopier(lib, tu.NewMemoryRunStore(), nil, nil),
	})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m.Update(first(t, m.Init()))
	return m, ctrl
}

func TestModel(t *testing.T) {
	t.Run("PlaylistList", func(t *testing.T) {
		m, _ := newTestModel(t)
		if m.view != PlaylistListView || !m.ready {
			t.Fatal("expected the playlist list to be loaded")
		}
		if view := m.View(); !strings.Contains(view, "Road Trip") {
			t.Errorf("expected playlist in view, got:\n%s", view)
		}
	})

	t.Run("Play", func(t *testing.T) {
		m, ctrl := newTestModel(t)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != PlayerView {
			t.Fatalf("expected player view, got %d", m.view)
		}
		if m.key.PlaylistID != "p1" || m.key.Mode != models.ModeController {
			t.Errorf("unexpected key %s", m.key)
		}
		if view := m.View(); !strings.Contains(view, "Starting...") {
			t.Errorf("expected starting placeholder, got:\n%s", view)
		}

		m.Update(first(t, cmd))
		if m.busy || m.run == nil {
			t.Fatal("expected the started run")
		}
		view := m.View()
		for _, want := range []string{"PLAYING", "Song A", "0:30 / 2:00", "track 1/3", "Up next: b"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in view, got:\n%s", want, view)
			}
		}
		if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "start" {
			t.Errorf("expected a single start, got %v", calls)
		}
	})

	t.Run("PlayerKeys", func(t *testing.T) {
		m, ctrl := newTestModel(t)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(first(t, cmd))

		for _, k := range []string{"n", "r", "s"} {
			_, cmd := m.Update(runes(k))
			if !m.busy {
				t.Fatalf("expected %s to mark the model busy", k)
			}
			if _, again := m.Update(runes(k)); again != nil {
				t.Errorf("expected %s to be ignored while busy", k)
			}
			m.Update(first(t, cmd))
		}

		want := "start,next,reshuffle,stop"
		if got := strings.Join(ctrl.Calls(), ","); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PlaylistListView {
			t.Error("expected esc to return to the list")
		}
	})

	t.Run("Tick", func(t *testing.T) {
		m, ctrl := newTestModel(t)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(first(t, cmd))

		_, cmd = m.Update(tickMsg())
		m.Update(first(t, cmd))
		if calls := ctrl.Calls(); calls[len(calls)-1] != "status" {
			t.Errorf("expected a status poll, got %v", calls)
		}

		m.view = PlaylistListView
		if _, cmd := m.Update(tickMsg()); cmd != nil {
			t.Error("expected ticks to stop outside the player view")
		}
	})

	t.Run("Watch", func(t *testing.T) {
		ctrl := newFakeController()
		key := models.RunKey{UserID: "u1", PlaylistID: "p1", Mode: models.ModeController}
		m := NewModel(context.Background(), Options{Controller: ctrl, Key: &key})

		if m.view != PlayerView {
			t.Fatal("expected to open on the player view")
		}
		m.Update(first(t, m.Init()))
		if m.run == nil || m.run.ID != "run-1" {
			t.Fatal("expected the watched run")
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PlayerView {
			t.Error("expected esc to be ignored while watching")
		}
		if strings.Contains(m.View(), "resume") {
			t.Error("expected no resume binding without a starter")
		}
	})

	t.Run("Copy", func(t *testing.T) {
		m, _ := newTestModel(t)

		_, cmd := m.Update(runes("c"))
		if m.view != CopyView {
			t.Fatalf("expected copy view, got %d", m.view)
		}

		var updates int
		for cmd != nil {
			msg := cmd()
			if got, ok := msg.(Msg); ok && got.kind == MsgProgressUpdate {
				updates++
			}
			_, cmd = m.Update(msg)
		}

		if updates == 0 {
			t.Error("expected progress updates")
		}
		if m.view != ResultView {
			t.Fatalf("expected result view, got %d", m.view)
		}
		view := m.View()
		if !strings.Contains(view, "Shuffle Copy Complete") || !strings.Contains(view, "🔀 Road Trip") {
			t.Errorf("unexpected result view:\n%s", view)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PlaylistListView {
			t.Error("expected esc to return to the list")
		}
	})
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, filled int
	}{
		{0, 100, 0},
		{50, 100, 5},
		{100, 100, 10},
		{150, 100, 10},
		{5, 0, 0},
	}

	for _, tt := range tests {
		bar := progressBar(tt.done, tt.total, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%d, %d) filled %d, want %d", tt.done, tt.total, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("progressBar(%d, %d) width %d, want 10", tt.done, tt.total, got)
		}
	}
}
