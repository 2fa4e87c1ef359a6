package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

const runColumns = `
	id, sequence, status, lookback_seconds, pages_fetched, events_collected,
	distinct_titles, partial, error_message, started_at, completed_at,
	created_at, updated_at, deleted_at
`

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// RunRepository implements [models.Repository] for [models.Run].
//
// Runs are soft deleted; deleting a run keeps its published tracks until the row is purged.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with a generated ID and the next sequence number
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stats := run.Stats()

	query := `
		INSERT INTO runs (
			id, sequence, status, lookback_seconds, pages_fetched, events_collected,
			distinct_titles, partial, error_message, started_at, completed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(run.Status()),
		int64(run.Lookback()/time.Second),
		stats.PagesFetched,
		stats.EventsCollected,
		stats.DistinctTitles,
		stats.Partial,
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Update writes the run's status, counters and completion time
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)
	stats := run.Stats()

	query := `
		UPDATE runs
		SET status = ?, pages_fetched = ?, events_collected = ?, distinct_titles = ?,
			partial = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		stats.PagesFetched,
		stats.EventsCollected,
		stats.DistinctTitles,
		stats.Partial,
		nullString(run.ErrorMessage()),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs, newest first.
//
// Supported criteria: "status" (string or [models.RunStatus]) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		if status != "" {
			query += " AND status = ?"
			args = append(args, string(status))
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// AddTracks records the tracks a run published, in a single transaction
func (r *RunRepository) AddTracks(runID string, tracks []models.RunTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_tracks (run_id, playlist_id, position, uri, title, plays, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.Exec(runID, t.PlaylistID, t.Position, t.URI, t.Title, t.Plays, t.Popularity); err != nil {
			return fmt.Errorf("failed to insert track %d of %s: %w", t.Position, t.PlaylistID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracks: %w", err)
	}
	return nil
}

// Tracks returns the tracks a run published, ordered by playlist and position
func (r *RunRepository) Tracks(runID string) ([]models.RunTrack, error) {
	rows, err := r.db.Query(`
		SELECT run_id, playlist_id, position, uri, title, plays, popularity
		FROM run_tracks
		WHERE run_id = ?
		ORDER BY playlist_id, position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.RunTrack
	for rows.Next() {
		var t models.RunTrack
		if err := rows.Scan(&t.RunID, &t.PlaylistID, &t.Position, &t.URI, &t.Title, &t.Plays, &t.Popularity); err != nil {
			return nil, fmt.Errorf("failed to scan run track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		id              string
		sequence        int
		status          string
		lookbackSeconds int64
		stats           models.RunStats
		errorMessage    sql.NullString
		startedAt       time.Time
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &status, &lookbackSeconds, &stats.PagesFetched, &stats.EventsCollected,
		&stats.DistinctTitles, &stats.Partial, &errorMessage, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(sequence, time.Duration(lookbackSeconds)*time.Second, startedAt)
	run.SetID(id)
	run.SetStatus(models.RunStatus(status))
	run.SetStats(stats)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
