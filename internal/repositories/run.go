package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/shared"
)

const runColumns = `id, sequence, user_id, playlist_id, mode, shuffled_order, cursor, queued_until, status,
	skipped, passed, excluded, device_id, last_error, message, now_playing, target_playlist_id,
	created_at, updated_at`

// RunRepository persists [models.Run] records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// LoadRun returns the most recently created run for key in any status, or nil when there is none.
func (r *RunRepository) LoadRun(ctx context.Context, key models.RunKey) (*models.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE user_id = ? AND playlist_id = ? AND mode = ?
		ORDER BY sequence DESC
		LIMIT 1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, key.UserID, key.PlaylistID, string(key.Mode)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// SaveRun inserts run, assigning ID and sequence on first save, or updates it in place.
func (r *RunRepository) SaveRun(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	if run.ID != "" {
		query := `
			UPDATE runs
			SET shuffled_order = ?, cursor = ?, queued_until = ?, status = ?, skipped = ?, passed = ?,
				excluded = ?, device_id = ?, last_error = ?, message = ?, now_playing = ?,
				target_playlist_id = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := r.db.ExecContext(ctx, query,
			cols.order, run.Cursor, run.QueuedUntil, string(run.Status), cols.skipped, cols.passed,
			cols.excluded, run.DeviceID, run.LastError, run.Message, cols.nowPlaying,
			run.TargetPlaylistID, run.UpdatedAt, run.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows > 0 {
			return nil
		}
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	run.Sequence = sequence
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.Sequence, run.Key.UserID, run.Key.PlaylistID, string(run.Key.Mode), cols.order,
		run.Cursor, run.QueuedUntil, string(run.Status), cols.skipped, cols.passed, cols.excluded,
		run.DeviceID, run.LastError, run.Message, cols.nowPlaying, run.TargetPlaylistID,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.Key, err)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported criteria: "user_id", "playlist_id", "mode", "status" (strings) and "limit" (int).
func (r *RunRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	for _, col := range []string{"user_id", "playlist_id", "mode", "status"} {
		if v, ok := criteria[col].(string); ok && v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type runJSON struct {
	order      string
	skipped    string
	passed     string
	excluded   string
	nowPlaying sql.NullString
}

func encodeRun(run *models.Run) (runJSON, error) {
	var cols runJSON
	var err error

	if cols.order, err = encodeList(run.Order); err != nil {
		return cols, fmt.Errorf("failed to encode order: %w", err)
	}
	if cols.skipped, err = encodeList(run.Skipped); err != nil {
		return cols, fmt.Errorf("failed to encode skipped: %w", err)
	}
	if cols.passed, err = encodeList(run.Passed); err != nil {
		return cols, fmt.Errorf("failed to encode passed: %w", err)
	}

	excluded := run.Excluded
	if excluded == nil {
		excluded = []models.ExcludedTrack{}
	}
	b, err := json.Marshal(excluded)
	if err != nil {
		return cols, fmt.Errorf("failed to encode excluded: %w", err)
	}
	cols.excluded = string(b)

	if run.NowPlaying != nil {
		b, err := json.Marshal(run.NowPlaying)
		if err != nil {
			return cols, fmt.Errorf("failed to encode now playing: %w", err)
		}
		cols.nowPlaying = sql.NullString{String: string(b), Valid: true}
	}

	return cols, nil
}

func encodeList(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		mode       string
		status     string
		order      string
		skipped    string
		passed     string
		excluded   string
		nowPlaying sql.NullString
	)

	err := row.Scan(
		&run.ID, &run.Sequence, &run.Key.UserID, &run.Key.PlaylistID, &mode, &order, &run.Cursor,
		&run.QueuedUntil, &status, &skipped, &passed, &excluded, &run.DeviceID, &run.LastError,
		&run.Message, &nowPlaying, &run.TargetPlaylistID, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Key.Mode = models.Mode(mode)
	if run.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(order), &run.Order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	if err := json.Unmarshal([]byte(skipped), &run.Skipped); err != nil {
		return nil, fmt.Errorf("failed to decode skipped: %w", err)
	}
	if err := json.Unmarshal([]byte(passed), &run.Passed); err != nil {
		return nil, fmt.Errorf("failed to decode passed: %w", err)
	}
	if err := json.Unmarshal([]byte(excluded), &run.Excluded); err != nil {
		return nil, fmt.Errorf("failed to decode excluded: %w", err)
	}
	if nowPlaying.Valid {
		run.NowPlaying = &models.NowPlaying{}
		if err := json.Unmarshal([]byte(nowPlaying.String), run.NowPlaying); err != nil {
			return nil, fmt.Errorf("failed to decode now playing: %w", err)
		}
	}

	return &run, nil
}
