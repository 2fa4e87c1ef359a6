package models

import (
	"fmt"
	"time"
)

// Model is a row of the run journal. Entries are never updated after they reach a terminal
// status, and deleting one only hides it from listings.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository stores one kind of journal entry. List filters by the criteria keys the
// implementation documents.
type Repository[T Model] interface {
	Create(entry T) error
	Get(id string) (T, error)
	Update(entry T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

var _ Model = (*Run)(nil)

// RunStatus is the lifecycle state of a harvest [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunDryRun    RunStatus = "dry_run"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed, RunDryRun:
		return true
	default:
		return false
	}
}

// RunStats are the counters recorded when a run finishes collecting.
type RunStats struct {
	PagesFetched    int
	EventsCollected int
	DistinctTitles  int
	Partial         bool
}

// Run is one harvest execution recorded in the journal.
type Run struct {
	id           string
	sequence     int
	status       RunStatus
	lookback     time.Duration
	stats        RunStats
	errorMessage string
	startedAt    time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewRun creates a running [Run] started at startedAt.
func NewRun(sequence int, lookback time.Duration, startedAt time.Time) *Run {
	now := time.Now()
	return &Run{
		sequence:  sequence,
		status:    RunRunning,
		lookback:  lookback,
		startedAt: startedAt,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Run) ID() string              { return r.id }
func (r *Run) Sequence() int           { return r.sequence }
func (r *Run) Status() RunStatus       { return r.status }
func (r *Run) Lookback() time.Duration { return r.lookback }
func (r *Run) Stats() RunStats         { return r.stats }
func (r *Run) ErrorMessage() string    { return r.errorMessage }
func (r *Run) StartedAt() time.Time    { return r.startedAt }
func (r *Run) CompletedAt() *time.Time { return r.completedAt }
func (r *Run) CreatedAt() time.Time    { return r.createdAt }
func (r *Run) UpdatedAt() time.Time    { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time   { return r.deletedAt }

func (r *Run) SetID(id string)             { r.id = id }
func (r *Run) SetSequence(sequence int)    { r.sequence = sequence }
func (r *Run) SetStatus(status RunStatus)  { r.status = status }
func (r *Run) SetStats(stats RunStats)     { r.stats = stats }
func (r *Run) SetErrorMessage(msg string)  { r.errorMessage = msg }
func (r *Run) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *Run) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time)   { r.deletedAt = t }

// Finish moves the run to a terminal status. A non-nil err marks it failed regardless of status.
func (r *Run) Finish(status RunStatus, err error, at time.Time) {
	r.status = status
	if err != nil {
		r.status = RunFailed
		r.errorMessage = err.Error()
	}
	r.completedAt = &at
}

// Validate checks the run's invariants.
func (r *Run) Validate() error {
	if !r.status.Valid() {
		return fmt.Errorf("invalid run status %q", r.status)
	}
	if r.lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if r.startedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if r.status == RunFailed && r.errorMessage == "" {
		return fmt.Errorf("failed run requires an error message")
	}
	if r.completedAt != nil && r.completedAt.Before(r.startedAt) {
		return fmt.Errorf("completed_at precedes started_at")
	}
	return nil
}

// RunTrack is a track published by a run at a position of a playlist.
type RunTrack struct {
	RunID      string `json:"run_id"`
	PlaylistID string `json:"playlist_id"`
	Position   int    `json:"position"`
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Plays      int    `json:"plays"`
	Popularity int    `json:"popularity"`
}
