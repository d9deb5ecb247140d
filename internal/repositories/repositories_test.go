package repositories

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testKey(playlist string) models.RunKey {
	return models.RunKey{UserID: "user-1", PlaylistID: playlist, Mode: models.ModeController}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveAndLoad", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun(testKey("p1"), []string{"a", "b", "c", "d"})
		run.Status = models.StatusPlaying
		run.Cursor = 1
		run.QueuedUntil = 3
		run.Skip("c")
		run.Passed = []string{"a"}
		run.Excluded = []models.ExcludedTrack{{Name: "Local Song", Reason: models.ReasonLocal}}
		run.DeviceID = "device-1"
		run.NowPlaying = &models.NowPlaying{URI: "b", Name: "Song B", ProgressMS: 1200, DurationMS: 180000, IsPlaying: true}

		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if run.ID == "" {
			t.Error("run ID should be set after save")
		}
		if run.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence)
		}

		loaded, err := repo.LoadRun(ctx, run.Key)
		if err != nil {
			t.Fatalf("failed to load run: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected a run")
		}

		if loaded.ID != run.ID || loaded.Key != run.Key || loaded.Status != models.StatusPlaying {
			t.Errorf("unexpected identity: %+v", loaded)
		}
		if !slices.Equal(loaded.Order, run.Order) {
			t.Errorf("expected order %v, got %v", run.Order, loaded.Order)
		}
		if loaded.Cursor != 1 || loaded.QueuedUntil != 3 {
			t.Errorf("expected cursor 1 and watermark 3, got %d and %d", loaded.Cursor, loaded.QueuedUntil)
		}
		if !loaded.IsSkipped("c") {
			t.Error("expected c to be skipped")
		}
		if !slices.Equal(loaded.Passed, []string{"a"}) {
			t.Errorf("expected passed [a], got %v", loaded.Passed)
		}
		if len(loaded.Excluded) != 1 || loaded.Excluded[0].Reason != models.ReasonLocal {
			t.Errorf("unexpected excluded tracks: %+v", loaded.Excluded)
		}
		if loaded.NowPlaying == nil || loaded.NowPlaying.Name != "Song B" {
			t.Errorf("unexpected now playing: %+v", loaded.NowPlaying)
		}
		if loaded.DeviceID != "device-1" {
			t.Errorf("expected device-1, got %s", loaded.DeviceID)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		run, err := NewRunRepository(db).LoadRun(ctx, testKey("missing"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run != nil {
			t.Errorf("expected nil run, got %+v", run)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun(testKey("p1"), []string{"a", "b", "c"})
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		run.Status = models.StatusOverriding
		run.Cursor = 2
		run.QueuedUntil = 2
		run.LastError = "boom"
		run.NowPlaying = nil
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		loaded, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if loaded.Status != models.StatusOverriding || loaded.Cursor != 2 || loaded.LastError != "boom" {
			t.Errorf("update not persisted: %+v", loaded)
		}
		if loaded.Sequence != run.Sequence {
			t.Errorf("sequence changed on update: %d -> %d", run.Sequence, loaded.Sequence)
		}
	})

	t.Run("LatestWins", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		first := models.NewRun(testKey("p1"), []string{"a", "b"})
		first.Status = models.StatusCompleted
		if err := repo.SaveRun(ctx, first); err != nil {
			t.Fatalf("failed to save first run: %v", err)
		}

		second := models.NewRun(testKey("p1"), []string{"b", "a"})
		if err := repo.SaveRun(ctx, second); err != nil {
			t.Fatalf("failed to save second run: %v", err)
		}

		loaded, err := repo.LoadRun(ctx, testKey("p1"))
		if err != nil {
			t.Fatalf("failed to load run: %v", err)
		}
		if loaded.ID != second.ID {
			t.Errorf("expected latest run %s, got %s", second.ID, loaded.ID)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		for _, pid := range []string{"p1", "p2", "p3"} {
			run := models.NewRun(testKey(pid), []string{"a"})
			if pid == "p2" {
				run.Status = models.StatusStopped
			}
			if err := repo.SaveRun(ctx, run); err != nil {
				t.Fatalf("failed to save run: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     []string
		}{
			{"all", nil, []string{"p3", "p2", "p1"}},
			{"by status", map[string]any{"status": "STOPPED"}, []string{"p2"}},
			{"by playlist", map[string]any{"playlist_id": "p1"}, []string{"p1"}},
			{"limited", map[string]any{"limit": 2}, []string{"p3", "p2"}},
			{"other user", map[string]any{"user_id": "user-2"}, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runs, err := repo.List(ctx, tt.criteria)
				if err != nil {
					t.Fatalf("failed to list runs: %v", err)
				}

				var got []string
				for _, run := range runs {
					got = append(got, run.Key.PlaylistID)
				}
				if !slices.Equal(got, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			})
		}
	})
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveAndLoad", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTokenRepository(db)
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: expiry}

		if err := repo.Save(ctx, "user-1", token); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		loaded, err := repo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("failed to load token: %v", err)
		}
		if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
			t.Errorf("unexpected token: %+v", loaded)
		}
		if !loaded.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, loaded.Expiry)
		}
	})

	t.Run("RefreshKeepsRefreshToken", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTokenRepository(db)
		if err := repo.Save(ctx, "user-1", &oauth2.Token{AccessToken: "old", RefreshToken: "refresh"}); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}
		if err := repo.Save(ctx, "user-1", &oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("failed to save refreshed token: %v", err)
		}

		loaded, err := repo.Load(ctx, "user-1")
		if err != nil {
			t.Fatalf("failed to load token: %v", err)
		}
		if loaded.AccessToken != "new" {
			t.Errorf("expected new access token, got %s", loaded.AccessToken)
		}
		if loaded.RefreshToken != "refresh" {
			t.Errorf("expected refresh token to be kept, got %q", loaded.RefreshToken)
		}
		if !loaded.Expiry.IsZero() {
			t.Errorf("expected zero expiry, got %v", loaded.Expiry)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTokenRepository(db)
		if err := repo.Save(ctx, "user-1", &oauth2.Token{AccessToken: "access"}); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}
		if err := repo.Delete(ctx, "user-1"); err != nil {
			t.Fatalf("failed to delete token: %v", err)
		}
		if _, err := repo.Load(ctx, "user-1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := &models.User{SpotifyID: "spotify-1", DisplayName: "Test User"}

		if err := repo.Upsert(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if user.ID == "" {
			t.Error("user ID should be set after creation")
		}

		again := &models.User{SpotifyID: "spotify-1", DisplayName: "Renamed"}
		if err := repo.Upsert(ctx, again); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if again.ID != user.ID {
			t.Errorf("expected existing ID %s, got %s", user.ID, again.ID)
		}

		retrieved, err := repo.GetBySpotifyID(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.DisplayName != "Renamed" {
			t.Errorf("expected display name Renamed, got %s", retrieved.DisplayName)
		}
	})

	t.Run("GetAndLatest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		first := &models.User{SpotifyID: "spotify-1"}
		second := &models.User{SpotifyID: "spotify-2"}
		for _, u := range []*models.User{first, second} {
			if err := repo.Upsert(ctx, u); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}

		got, err := repo.Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.SpotifyID != "spotify-1" {
			t.Errorf("expected spotify-1, got %s", got.SpotifyID)
		}

		latest, err := repo.Latest(ctx)
		if err != nil {
			t.Fatalf("failed to get latest user: %v", err)
		}
		if latest.ID != second.ID {
			t.Errorf("expected latest user %s, got %s", second.ID, latest.ID)
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		for _, id := range []string{"spotify-1", "spotify-2"} {
			if err := repo.Upsert(ctx, &models.User{SpotifyID: id}); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}

		users, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}

		if err := repo.Delete(ctx, users[0].ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		users, err = repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 1 || users[0].SpotifyID != "spotify-2" {
			t.Errorf("expected only spotify-2 to remain, got %+v", users)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	runSeq, err := NextSequence(db, "runs")
	if err != nil {
		t.Fatalf("failed to get run sequence: %v", err)
	}

	if runSeq != 1 {
		t.Errorf("expected first run sequence to be 1, got %d", runSeq)
	}
}
