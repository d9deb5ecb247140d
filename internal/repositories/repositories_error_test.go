package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	"golang.org/x/oauth2"
)

func TestRunRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveRun", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			run := models.NewRun(testKey("p1"), []string{"a", "b"})
			run.Cursor = 5

			if err := repo.SaveRun(ctx, run); err == nil {
				t.Fatal("expected validation error for cursor out of range")
			}
		})

		t.Run("EmptyOrder", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), nil)); err == nil {
				t.Fatal("expected validation error for empty order")
			}
		})

		t.Run("SecondActiveRun", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), []string{"a"})); err != nil {
				t.Fatalf("failed to save first run: %v", err)
			}

			if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), []string{"a"})); err == nil {
				t.Fatal("expected unique constraint error for a second non-terminal run")
			}
		})

		t.Run("SecondRunAfterFailure", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			failed := models.NewRun(testKey("p1"), []string{"a"})
			failed.Status = models.StatusFailed
			if err := repo.SaveRun(ctx, failed); err != nil {
				t.Fatalf("failed to save failed run: %v", err)
			}

			if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), []string{"a"})); err != nil {
				t.Fatalf("expected a new run to be allowed after a terminal one: %v", err)
			}
		})

		t.Run("OtherModeIndependent", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRunRepository(db)
			if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), []string{"a"})); err != nil {
				t.Fatalf("failed to save controller run: %v", err)
			}

			key := testKey("p1")
			key.Mode = models.ModeUtility
			if err := repo.SaveRun(ctx, models.NewRun(key, []string{"a"})); err != nil {
				t.Fatalf("expected utility run to coexist with controller run: %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewRunRepository(db).Get(ctx, "nonexistent-id")
			if !errors.Is(err, shared.ErrRunNotFound) {
				t.Fatalf("expected ErrRunNotFound, got %v", err)
			}
		})
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		repo := NewRunRepository(db)
		if _, err := repo.LoadRun(ctx, testKey("p1")); err == nil {
			t.Error("expected error loading from closed database")
		}
		if err := repo.SaveRun(ctx, models.NewRun(testKey("p1"), []string{"a"})); err == nil {
			t.Error("expected error saving to closed database")
		}
		if _, err := repo.List(ctx, nil); err == nil {
			t.Error("expected error listing from closed database")
		}
	})
}

func TestTokenRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewTokenRepository(db).Load(ctx, "nobody")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("SaveEmpty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTokenRepository(db)
		for _, token := range []*oauth2.Token{nil, {RefreshToken: "refresh"}} {
			if err := repo.Save(ctx, "user-1", token); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		}
	})
}

func TestUserRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("UpsertWithoutSpotifyID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewUserRepository(db).Upsert(ctx, &models.User{DisplayName: "Nobody"}); err == nil {
			t.Fatal("expected validation error for empty spotify ID")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewUserRepository(db).Get(ctx, "nonexistent-id")
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("LatestEmpty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewUserRepository(db).Latest(ctx)
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := &models.User{SpotifyID: "spotify-1"}
		if err := repo.Upsert(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if err := repo.Delete(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if err := repo.Delete(ctx, user.ID); !errors.Is(err, shared.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := repo.GetBySpotifyID(ctx, "spotify-1"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Fatalf("expected deleted user to be hidden, got %v", err)
		}
	})
}

func TestUserRepositoryRestore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewUserRepository(db)
	user := &models.User{SpotifyID: "spotify-1"}
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}

	again := &models.User{SpotifyID: "spotify-1"}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("expected deleted user to be restored: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("expected restored ID %s, got %s", user.ID, again.ID)
	}
}
