package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/fiply/internal/shared"
)

// sequenceTables maps each journal table to the single-row counter its migration creates.
var sequenceTables = map[string]string{
	"runs": "runs_sequence",
}

// NextSequence bumps the journal counter for table and returns the new value.
//
// Runs are numbered from 1 in the order they started; `fiply history` prints the number next to
// each run so reruns of the same week can be told apart without reading UUIDs.
func NextSequence(db *sql.DB, table string) (int, error) {
	counter, ok := sequenceTables[table]
	if !ok {
		return 0, fmt.Errorf("%w: no sequence counter for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	err := db.QueryRow(`UPDATE ` + counter + ` SET value = value + 1 WHERE id = 1 RETURNING value`).Scan(&sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sequence %s has no counter row; run 'fiply setup database'", counter)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return sequence, nil
}
