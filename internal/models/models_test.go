package models

import (
	"slices"
	"testing"
)

func TestStatus(t *testing.T) {
	t.Run("Terminal And Active", func(t *testing.T) {
		tests := []struct {
			status   Status
			terminal bool
			active   bool
		}{
			{StatusPending, false, false},
			{StatusStarting, false, true},
			{StatusPlaying, false, true},
			{StatusOverriding, false, true},
			{StatusNoDevice, false, true},
			{StatusStopped, false, false},
			{StatusCompleted, true, false},
			{StatusFailed, true, false},
		}

		for _, tt := range tests {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
			}
			if got := tt.status.Active(); got != tt.active {
				t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
			}
		}
	})

	t.Run("ParseStatus", func(t *testing.T) {
		got, err := ParseStatus(" no_device ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != StatusNoDevice {
			t.Errorf("expected %s, got %s", StatusNoDevice, got)
		}

		if _, err := ParseStatus("PAUSED"); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("ParseMode", func(t *testing.T) {
		if m, err := ParseMode("Utility"); err != nil || m != ModeUtility {
			t.Errorf("expected utility mode, got %q (%v)", m, err)
		}
		if _, err := ParseMode("radio"); err == nil {
			t.Error("expected error for unknown mode")
		}
	})
}

func TestRun(t *testing.T) {
	key := RunKey{UserID: "u1", PlaylistID: "p1", Mode: ModeController}

	t.Run("NewRun", func(t *testing.T) {
		order := []string{"a", "b", "c"}
		run := NewRun(key, order)

		if run.Cursor != -1 || run.QueuedUntil != -1 {
			t.Errorf("expected cursor and queued_until at -1, got %d/%d", run.Cursor, run.QueuedUntil)
		}
		if run.Status != StatusPending {
			t.Errorf("expected PENDING, got %s", run.Status)
		}

		order[0] = "z"
		if run.Order[0] != "a" {
			t.Error("run order should not alias the input slice")
		}
	})

	t.Run("Clone", func(t *testing.T) {
		run := NewRun(key, []string{"a", "b"})
		run.Skip("x")
		run.NowPlaying = &NowPlaying{URI: "a"}

		c := run.Clone()
		c.Order[0] = "changed"
		c.Skipped[0] = "changed"
		c.NowPlaying.URI = "changed"

		if run.Order[0] != "a" || run.Skipped[0] != "x" || run.NowPlaying.URI != "a" {
			t.Error("clone should be a deep copy")
		}
	})

	t.Run("Cursor Helpers", func(t *testing.T) {
		run := NewRun(key, []string{"a", "b", "c"})
		if run.Current() != "" || run.Next() != "a" {
			t.Errorf("unexpected current/next before playback: %q/%q", run.Current(), run.Next())
		}

		run.Cursor = 2
		if run.Current() != "c" || run.Next() != "" || !run.IsLast() {
			t.Errorf("unexpected helpers at last entry: %q/%q/%v", run.Current(), run.Next(), run.IsLast())
		}
		if run.IndexOf("b") != 1 || run.IndexOf("zz") != -1 {
			t.Error("IndexOf returned unexpected positions")
		}
	})

	t.Run("Unplayable Tail", func(t *testing.T) {
		run := NewRun(key, []string{"a", "b", "c", "d"})
		run.Skip("c")
		run.Skip("d")

		run.Cursor = 0
		if run.IsLast() {
			t.Error("cursor on a with b still playable is not last")
		}
		run.Cursor = 1
		if !run.IsLast() {
			t.Error("expected b to be last when only unplayable entries follow")
		}

		tests := []struct {
			from int
			want int
		}{
			{-1, 0},
			{1, 1},
			{2, -1},
			{4, -1},
		}
		for _, tt := range tests {
			if got := run.PlayableFrom(tt.from); got != tt.want {
				t.Errorf("PlayableFrom(%d) = %d, want %d", tt.from, got, tt.want)
			}
		}
	})

	t.Run("Skip Keeps Set Sorted", func(t *testing.T) {
		run := NewRun(key, nil)
		for _, id := range []string{"c", "a", "b", "a"} {
			run.Skip(id)
		}

		if !slices.Equal(run.Skipped, []string{"a", "b", "c"}) {
			t.Errorf("unexpected skipped set: %v", run.Skipped)
		}
		if !run.IsSkipped("b") || run.IsSkipped("d") {
			t.Error("IsSkipped returned unexpected result")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(r *Run)
			wantErr bool
		}{
			{"valid", func(r *Run) {}, false},
			{"valid mid-run", func(r *Run) { r.Cursor, r.QueuedUntil = 1, 2 }, false},
			{"duplicate entry", func(r *Run) { r.Order[2] = "a" }, true},
			{"empty entry", func(r *Run) { r.Order[1] = "" }, true},
			{"cursor past end", func(r *Run) { r.Cursor, r.QueuedUntil = 3, 3 }, true},
			{"queue behind cursor", func(r *Run) { r.Cursor, r.QueuedUntil = 2, 1 }, true},
			{"queue past end", func(r *Run) { r.QueuedUntil = 5 }, true},
			{"missing user", func(r *Run) { r.Key.UserID = "" }, true},
			{"bad status", func(r *Run) { r.Status = "PAUSED" }, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				run := NewRun(key, []string{"a", "b", "c"})
				tt.mutate(run)

				err := run.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})
}

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		name    string
		devices []Device
		want    string
	}{
		{"none", nil, ""},
		{"active preferred", []Device{{ID: "a"}, {ID: "b", IsActive: true}}, "b"},
		{"first usable fallback", []Device{{ID: "a", IsRestricted: true}, {ID: "b"}, {ID: "c"}}, "b"},
		{"restricted active skipped", []Device{{ID: "a", IsActive: true, IsRestricted: true}, {ID: "b"}}, "b"},
		{"all restricted", []Device{{ID: "a", IsRestricted: true}}, ""},
		{"missing id", []Device{{Name: "ghost", IsActive: true}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectDevice(tt.devices)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("expected no device, got %s", got.ID)
			case tt.want != "" && (got == nil || got.ID != tt.want):
				t.Errorf("expected device %s, got %+v", tt.want, got)
			}
		})
	}
}
