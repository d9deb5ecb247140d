package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
	th "github.com/desertthunder/trueshuffle/internal/testing"
)

func testRun() *models.Run {
	run := models.NewRun(models.RunKey{UserID: "u1", PlaylistID: "p1", Mode: models.ModeController},
		[]string{"a", "b", "c", "d", "e", "f"})
	run.ID = "run-1"
	run.Sequence = 3
	run.Cursor = 2
	run.QueuedUntil = 4
	run.Status = models.StatusPlaying
	run.Passed = []string{"b"}
	run.Skip("f")
	run.Excluded = []models.ExcludedTrack{{Name: "demo.mp3", Reason: models.ReasonLocal}}
	run.NowPlaying = &models.NowPlaying{URI: "c", Name: "Song C", Artist: "Artist C", ProgressMS: 65000, DurationMS: 200000, IsPlaying: true}
	run.UpdatedAt = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return run
}

func testTracks() map[string]models.Track {
	return TrackIndex(&models.TrackList{Tracks: []models.Track{
		{URI: "a", Name: "Song A", Artist: "Artist A", DurationMS: 180000},
		{URI: "c", Name: "Song C", Artist: "Artist C", DurationMS: 200000},
	}})
}

func TestEntryState(t *testing.T) {
	run := testRun()
	want := []string{StatePlayed, StatePassed, StateCurrent, StateQueued, StateQueued, StateSkipped}

	for i, w := range want {
		if got := EntryState(run, i); got != w {
			t.Errorf("position %d: expected %s, got %s", i, w, got)
		}
	}

	run.QueuedUntil = 2
	if got := EntryState(run, 3); got != StateUpcoming {
		t.Errorf("expected upcoming past the watermark, got %s", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{999, "0:00"},
		{65000, "1:05"},
		{3600000, "60:00"},
		{-5, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"Markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{" text ", FormatText, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("ParseFormat(%q) expected ErrInvalidArgument, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSummary(t *testing.T) {
	out := Summary(testRun())

	for _, want := range []string{
		"Run:      run-1",
		"Status:   PLAYING",
		"Progress: 3/6 (queued through 5)",
		"▶ Song C - Artist C [1:05 / 3:20]",
		"Up next:  d",
		"Skipped:  1",
		"Excluded: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q, got:\n%s", want, out)
		}
	}

	t.Run("Message", func(t *testing.T) {
		run := testRun()
		run.Status = models.StatusNoDevice
		run.Message = "No active Spotify device found."
		run.NowPlaying = nil
		out := Summary(run)
		if !strings.Contains(out, "No active Spotify device found.") {
			t.Error("expected the run message")
		}
		if strings.Contains(out, "Playing:") {
			t.Error("expected no playing line without a snapshot")
		}
	})
}

func TestWriteRuns(t *testing.T) {
	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteRuns(&buf, []*models.Run{testRun()}); err != nil {
			t.Fatalf("WriteRuns failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header and one row, got %d lines", len(lines))
		}
		for _, want := range []string{"controller", "p1", "PLAYING", "3/6", "2024-05-01 12:30"} {
			if !strings.Contains(lines[1], want) {
				t.Errorf("row missing %q: %s", want, lines[1])
			}
		}
	})

	t.Run("WriteError", func(t *testing.T) {
		if err := WriteRuns(&th.FWriter{}, []*models.Run{testRun()}); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testRun(), testTracks())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 7 {
			t.Fatalf("expected header and 6 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Position,URI,Name,Artist,Duration,State" {
			t.Errorf("unexpected header %v", records[0])
		}
		if strings.Join(records[3], ",") != "3,c,Song C,Artist C,200000,current" {
			t.Errorf("unexpected current row %v", records[3])
		}
		if records[2][2] != "b" {
			t.Errorf("expected unknown tracks to fall back to the URI, got %q", records[2][2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testRun(), "Road Trip", testTracks())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		out := string(data)

		for _, want := range []string{
			"# 🔀 Road Trip",
			"**Status**: PLAYING",
			"1. Artist A - Song A [3:00] _(played)_",
			"3. **Artist C - Song C [3:20]** _(current)_",
			"## Excluded",
			"- demo.mp3 (local file)",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("markdown missing %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testRun(), testTracks())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		out := string(data)
		if !strings.Contains(out, "→ 3. Artist C - Song C") {
			t.Errorf("expected cursor marker, got:\n%s", out)
		}
		if !strings.Contains(out, "  4. d") {
			t.Errorf("expected URI fallback, got:\n%s", out)
		}
	})
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		format Format
		want   string
	}{
		{FormatCSV, "Position,URI"},
		{FormatMarkdown, "# 🔀 Road Trip"},
		{FormatText, "Playlist: p1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			path := filepath.Join(dir, "exports", "order."+string(tt.format))

			written, err := WriteExport(testRun(), "Road Trip", testTracks(), tt.format, path)
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if written != path {
				t.Errorf("expected %s, got %s", path, written)
			}
			th.AssertFileExists(t, written)
			if content := th.MustReadFile(t, written); !strings.Contains(content, tt.want) {
				t.Errorf("expected file to contain %q", tt.want)
			}
		})
	}

	t.Run("UnknownFormat", func(t *testing.T) {
		if _, err := WriteExport(testRun(), "", nil, Format("pdf"), filepath.Join(dir, "x.pdf")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
