package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Three-table layout: sessions own exercises, exercises own sets.
// Exercise row ids are "{sessionID}_{exerciseID}"; set ids are only
// unique within their exercise, hence the composite primary key.
const schema = `
CREATE TABLE IF NOT EXISTS training_sessions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	routine_name TEXT NOT NULL,
	user_name    TEXT NOT NULL,
	date         TEXT NOT NULL,
	duration_min INTEGER NOT NULL DEFAULT 0,
	volume       REAL NOT NULL DEFAULT 0,
	description  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_exercises (
	id                  TEXT PRIMARY KEY,
	training_session_id TEXT NOT NULL,
	exercise_id         TEXT NOT NULL,
	exercise_name       TEXT NOT NULL,
	muscle_group        TEXT NOT NULL DEFAULT '',
	equipment           TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (training_session_id) REFERENCES training_sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS exercise_sets (
	id             TEXT NOT NULL,
	exercise_id    TEXT NOT NULL,
	weight         TEXT NOT NULL DEFAULT '',
	reps           TEXT NOT NULL DEFAULT '',
	completed      INTEGER NOT NULL DEFAULT 0,
	is_failure_set INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (exercise_id, id),
	FOREIGN KEY (exercise_id) REFERENCES session_exercises(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON training_sessions(user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_exercises_session ON session_exercises(training_session_id);
CREATE INDEX IF NOT EXISTS idx_sets_exercise ON exercise_sets(exercise_id);
`

// ensureSchema creates the tables and indexes if absent. Idempotent and
// never destructive; any creation error is fatal to initialization.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
