// package formatter renders runs for the terminal and exports play orders to files (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
)

// Entry states reported for each position of a play order.
const (
	StatePlayed   = "played"
	StateCurrent  = "current"
	StateQueued   = "queued"
	StateUpcoming = "upcoming"
	StatePassed   = "passed"
	StateSkipped  = "skipped"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat converts a format name; "markdown" and "text" are accepted as aliases.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, value)
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// EntryState classifies position i of run's order relative to the cursor and queue watermark.
func EntryState(run *models.Run, i int) string {
	id := run.Order[i]
	switch {
	case run.IsSkipped(id):
		return StateSkipped
	case i == run.Cursor:
		return StateCurrent
	case i < run.Cursor:
		for _, p := range run.Passed {
			if p == id {
				return StatePassed
			}
		}
		return StatePlayed
	case i <= run.QueuedUntil:
		return StateQueued
	default:
		return StateUpcoming
	}
}

// Progress returns "played/total" for the run, counting the current track as played.
func Progress(run *models.Run) string {
	return fmt.Sprintf("%d/%d", run.Cursor+1, len(run.Order))
}

// Summary renders the multi-line status block printed by `status`.
func Summary(run *models.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run:      %s\n", run.ID)
	fmt.Fprintf(&b, "Playlist: %s (%s)\n", run.Key.PlaylistID, run.Key.Mode)
	fmt.Fprintf(&b, "Status:   %s\n", run.Status)
	fmt.Fprintf(&b, "Progress: %s (queued through %d)\n", Progress(run), run.QueuedUntil+1)

	if np := run.NowPlaying; np != nil && np.URI != "" {
		state := "▶"
		if !np.IsPlaying {
			state = "⏸"
		}
		title := np.Name
		if np.Artist != "" {
			title += " - " + np.Artist
		}
		fmt.Fprintf(&b, "Playing:  %s %s [%s / %s]\n", state, title, FormatDuration(np.ProgressMS), FormatDuration(np.DurationMS))
	}
	if next := run.Next(); next != "" {
		fmt.Fprintf(&b, "Up next:  %s\n", next)
	}
	if run.TargetPlaylistID != "" {
		fmt.Fprintf(&b, "Copy:     %s\n", run.TargetPlaylistID)
	}
	if len(run.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped:  %d\n", len(run.Skipped))
	}
	if len(run.Excluded) > 0 {
		fmt.Fprintf(&b, "Excluded: %d\n", len(run.Excluded))
	}
	if run.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", run.Message)
	}
	if run.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s\n", run.LastError)
	}
	return b.String()
}

// WriteRuns writes one line per run to w, newest first as given.
func WriteRuns(w io.Writer, runs []*models.Run) error {
	header := fmt.Sprintf("%-4s %-10s %-24s %-11s %-9s %s\n", "#", "MODE", "PLAYLIST", "STATUS", "PROGRESS", "UPDATED")
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, run := range runs {
		line := fmt.Sprintf("%-4d %-10s %-24s %-11s %-9s %s\n",
			run.Sequence, run.Key.Mode, run.Key.PlaylistID, run.Status, Progress(run), run.UpdatedAt.Format("2006-01-02 15:04"))
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func trackFor(tracks map[string]models.Track, uri string) models.Track {
	if t, ok := tracks[uri]; ok {
		return t
	}
	return models.Track{URI: uri, Name: uri}
}

// ExportToCSV converts a run's order to CSV with columns: Position, URI, Name, Artist, Duration, State.
//
// tracks maps URIs to metadata and may be nil.
func ExportToCSV(run *models.Run, tracks map[string]models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "URI", "Name", "Artist", "Duration", "State"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, uri := range run.Order {
		t := trackFor(tracks, uri)
		record := []string{strconv.Itoa(i + 1), uri, t.Name, t.Artist, strconv.Itoa(t.DurationMS), EntryState(run, i)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown converts a run's order to Markdown, listing excluded entries at the end.
func ExportToMarkdown(run *models.Run, name string, tracks map[string]models.Track) ([]byte, error) {
	var buf bytes.Buffer

	if name == "" {
		name = run.Key.PlaylistID
	}
	fmt.Fprintf(&buf, "# 🔀 %s\n\n", name)
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status)
	fmt.Fprintf(&buf, "**Progress**: %s\n", Progress(run))
	if run.TargetPlaylistID != "" {
		fmt.Fprintf(&buf, "**Copy**: %s\n", run.TargetPlaylistID)
	}

	buf.WriteString("\n## Order\n\n")
	for i, uri := range run.Order {
		t := trackFor(tracks, uri)
		line := t.Name
		if t.Artist != "" {
			line = t.Artist + " - " + line
		}
		if t.DurationMS > 0 {
			line += " [" + FormatDuration(t.DurationMS) + "]"
		}
		state := EntryState(run, i)
		if state == StateCurrent {
			line = "**" + line + "**"
		}
		fmt.Fprintf(&buf, "%d. %s _(%s)_\n", i+1, line, state)
	}

	if len(run.Excluded) > 0 {
		buf.WriteString("\n## Excluded\n\n")
		for _, ex := range run.Excluded {
			fmt.Fprintf(&buf, "- %s (%s)\n", ex.Name, ex.Reason)
		}
	}
	return buf.Bytes(), nil
}

// ExportToText converts a run's order to plain text, marking the cursor with an arrow.
func ExportToText(run *models.Run, tracks map[string]models.Track) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", run.Key.PlaylistID)
	fmt.Fprintf(&buf, "Status: %s\n", run.Status)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(run.Order))

	for i, uri := range run.Order {
		marker := "  "
		if i == run.Cursor {
			marker = "→ "
		}
		t := trackFor(tracks, uri)
		if t.Artist != "" {
			fmt.Fprintf(&buf, "%s%d. %s - %s\n", marker, i+1, t.Artist, t.Name)
		} else {
			fmt.Fprintf(&buf, "%s%d. %s\n", marker, i+1, t.Name)
		}
	}
	return buf.Bytes(), nil
}

// WriteExport renders run in format and writes it to path, creating parent directories.
//
// path defaults to {run.ID}_order.{format}. The written path is returned.
func WriteExport(run *models.Run, name string, tracks map[string]models.Track, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_order.%s", run.ID, format)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(run, tracks)
	case FormatMarkdown:
		data, err = ExportToMarkdown(run, name, tracks)
	case FormatText:
		data, err = ExportToText(run, tracks)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}

// TrackIndex maps each track of list by URI.
func TrackIndex(list *models.TrackList) map[string]models.Track {
	if list == nil {
		return nil
	}
	index := make(map[string]models.Track, len(list.Tracks))
	for _, t := range list.Tracks {
		index[t.URI] = t
	}
	return index
}
