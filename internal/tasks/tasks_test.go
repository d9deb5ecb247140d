package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"github.com/desertthunder/trueshuffle/internal/shuffle"
	tu "github.com/desertthunder/trueshuffle/internal/testing"
)

func uris(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("spotify:track:%03d", i)
	}
	return out
}

func newTestCopier(lib *tu.FakeLibrary, store *tu.MemoryRunStore) *Copier {
	guard := shuffle.NewGuard(0.5, 10, 5, rand.NewPCG(1, 2), nil)
	return NewCopier(lib, store, guard, nil)
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestCopier_Copy(t *testing.T) {
	ctx := context.Background()

	t.Run("Fresh", func(t *testing.T) {
		lib := tu.NewFakeLibrary()
		lib.AddPlaylist("p1", "Road Trip", uris(250)...)
		store := tu.NewMemoryRunStore()
		progress := make(chan ProgressUpdate, 100)

		result, err := newTestCopier(lib, store).Copy(ctx, progress, "u1", "p1")
		if err != nil {
			t.Fatalf("Copy failed: %v", err)
		}

		if len(lib.Created) != 1 || lib.Created[0].Name != "🔀 Road Trip" {
			t.Fatalf("expected one playlist named '🔀 Road Trip', got %+v", lib.Created)
		}
		added := lib.Added[result.Target.ID]
		if len(added) != 250 {
			t.Fatalf("expected 250 added tracks, got %d", len(added))
		}
		if !slices.Equal(added, result.Run.Order) {
			t.Error("expected tracks to be added in run order")
		}
		sorted := slices.Sorted(slices.Values(added))
		if !slices.Equal(sorted, uris(250)) {
			t.Error("expected the copy to be a permutation of the source")
		}

		if result.Run.Status != models.StatusCompleted {
			t.Errorf("expected COMPLETED, got %s", result.Run.Status)
		}
		if result.Run.Key.Mode != models.ModeUtility {
			t.Errorf("expected utility mode, got %s", result.Run.Key.Mode)
		}
		if result.Run.TargetPlaylistID != result.Target.ID {
			t.Errorf("expected target %s recorded, got %s", result.Target.ID, result.Run.TargetPlaylistID)
		}
		if result.Run.Cursor != 249 {
			t.Errorf("expected cursor 249, got %d", result.Run.Cursor)
		}
		if result.Resumed {
			t.Error("expected a fresh copy")
		}

		updates := drain(progress)
		if len(updates) == 0 {
			t.Fatal("expected progress updates")
		}
		if last := updates[len(updates)-1]; last.Phase != Done {
			t.Errorf("expected final phase done, got %s", last.Phase)
		}
		var batches int
		for _, u := range updates {
			if u.Phase == AddTracks {
				batches++
			}
		}
		if batches != 3 {
			t.Errorf("expected 3 add batches, got %d", batches)
		}
	})

	t.Run("Excluded", func(t *testing.T) {
		lib := tu.NewFakeLibrary()
		lib.AddPlaylist("p1", "Mixed", uris(3)...)
		lib.Lists["p1"].Excluded = []models.ExcludedTrack{{Name: "demo.mp3", Reason: models.ReasonLocal}}

		result, err := newTestCopier(lib, tu.NewMemoryRunStore()).Copy(ctx, nil, "u1", "p1")
		if err != nil {
			t.Fatalf("Copy failed: %v", err)
		}
		if len(result.Excluded) != 1 || len(result.Run.Excluded) != 1 {
			t.Errorf("expected the local file to be reported, got %+v", result.Excluded)
		}
	})

	t.Run("ResumeAfterFailure", func(t *testing.T) {
		lib := tu.NewFakeLibrary()
		lib.AddPlaylist("p1", "Long", uris(150)...)
		store := tu.NewMemoryRunStore()
		copier := newTestCopier(lib, store)

		lib.AddErr = errors.New("rate limited")
		if _, err := copier.Copy(ctx, nil, "u1", "p1"); err == nil {
			t.Fatal("expected the first copy to fail")
		}

		runs := store.All()
		if len(runs) != 1 {
			t.Fatalf("expected one stored run, got %d", len(runs))
		}
		if runs[0].Status.Terminal() {
			t.Fatalf("expected an unfinished run, got %s", runs[0].Status)
		}
		if runs[0].LastError == "" {
			t.Error("expected the failure to be recorded")
		}

		lib.AddErr = nil
		result, err := copier.Copy(ctx, nil, "u1", "p1")
		if err != nil {
			t.Fatalf("resume failed: %v", err)
		}
		if !result.Resumed {
			t.Error("expected the copy to resume")
		}
		if len(lib.Created) != 1 {
			t.Errorf("expected no second playlist, got %d", len(lib.Created))
		}
		if lib.Fetches != 1 {
			t.Errorf("expected the source to be fetched once, got %d", lib.Fetches)
		}
		if got := lib.Added[result.Target.ID]; !slices.Equal(got, runs[0].Order) {
			t.Error("expected the resumed copy to keep the stored order")
		}
		if result.Run.Status != models.StatusCompleted {
			t.Errorf("expected COMPLETED, got %s", result.Run.Status)
		}
	})

	t.Run("AgainAfterCompleted", func(t *testing.T) {
		lib := tu.NewFakeLibrary()
		lib.AddPlaylist("p1", "Again", uris(40)...)
		store := tu.NewMemoryRunStore()
		copier := newTestCopier(lib, store)

		first, err := copier.Copy(ctx, nil, "u1", "p1")
		if err != nil {
			t.Fatalf("first copy failed: %v", err)
		}
		second, err := copier.Copy(ctx, nil, "u1", "p1")
		if err != nil {
			t.Fatalf("second copy failed: %v", err)
		}

		if second.Resumed {
			t.Error("expected a completed copy to start over")
		}
		if second.Target.ID == first.Target.ID {
			t.Error("expected a new target playlist")
		}
		if len(store.All()) != 2 {
			t.Errorf("expected two runs, got %d", len(store.All()))
		}
		if slices.Equal(first.Run.Order, second.Run.Order) {
			t.Error("expected a different order")
		}
	})

	t.Run("EmptyPlaylist", func(t *testing.T) {
		lib := tu.NewFakeLibrary()
		lib.AddPlaylist("p1", "Nothing")
		store := tu.NewMemoryRunStore()

		_, err := newTestCopier(lib, store).Copy(ctx, nil, "u1", "p1")
		if !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Fatalf("expected ErrEmptyPlaylist, got %v", err)
		}
		if len(lib.Created) != 0 || store.Saves != 0 {
			t.Error("expected nothing to be created or saved")
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name    string
			setup   func(lib *tu.FakeLibrary, store *tu.MemoryRunStore)
			user    string
			want    error
			wantMsg string
		}{
			{"MissingUser", nil, "", shared.ErrInvalidInput, ""},
			{"CreateFails", func(lib *tu.FakeLibrary, _ *tu.MemoryRunStore) {
				lib.CreateErr = errors.New("forbidden")
			}, "u1", nil, "failed to create playlist"},
			{"SaveFails", func(_ *tu.FakeLibrary, store *tu.MemoryRunStore) {
				store.SaveErr = errors.New("disk full")
			}, "u1", nil, "failed to save run"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				lib := tu.NewFakeLibrary()
				lib.AddPlaylist("p1", "Errors", uris(5)...)
				store := tu.NewMemoryRunStore()
				if tt.setup != nil {
					tt.setup(lib, store)
				}

				_, err := newTestCopier(lib, store).Copy(ctx, nil, tt.user, "p1")
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.want != nil && !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
				}
			})
		}
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	lib := tu.NewFakeLibrary()
	lib.AddPlaylist("p1", "Unbuffered", uris(10)...)

	// Unbuffered with no reader: every send must fall through.
	progress := make(chan ProgressUpdate)
	if _, err := newTestCopier(lib, tu.NewMemoryRunStore()).Copy(context.Background(), progress, "u1", "p1"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchSource, "fetch_source"},
		{Shuffle, "shuffle"},
		{CreatePlaylist, "create_playlist"},
		{AddTracks, "add_tracks"},
		{Done, "done"},
		{Phase(99), ""},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
