// Package repositories implements SQLite persistence for the harvest run journal.
//
// [RunRepository] implements models.Repository for [models.Run] and stores the tracks each run
// published. The journal is write-mostly: the CLI lists it for auditing, and nothing in it is read
// back into a ranking.
//
// Runs carry a UUID and a sequence number; [NextSequence] bumps the single-row counter created by
// the journal migration in one UPDATE ... RETURNING statement.
package repositories
