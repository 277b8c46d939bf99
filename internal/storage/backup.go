package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/gymdex/internal/kv"
)

// backupKey is the key/value slot holding the backup blob.
const backupKey = "training_history_backup"

// Mirror keeps an eventually-consistent flat copy of the relational store
// in a single key/value slot. It may lag the store between a mutation and
// the next snapshot but never runs ahead of the last committed mutation.
type Mirror struct {
	blobs kv.Store
	log   *slog.Logger
}

// NewMirror creates a Mirror writing to the given blob slot.
func NewMirror(blobs kv.Store, log *slog.Logger) *Mirror {
	return &Mirror{blobs: blobs, log: log}
}

// The blob is one JSON document with every row of all three tables.
type backupDocument struct {
	Sessions  []backupSession  `json:"sessions"`
	Exercises []backupExercise `json:"exercises"`
	Sets      []backupSet      `json:"sets"`
	Timestamp string           `json:"timestamp"`
}

type backupSession struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	RoutineName string  `json:"routineName"`
	UserName    string  `json:"userName"`
	Date        string  `json:"date"`
	Duration    int     `json:"duration"`
	Volume      float64 `json:"volume"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

type backupExercise struct {
	ID                string `json:"id"`
	TrainingSessionID string `json:"trainingSessionId"`
	ExerciseID        string `json:"exerciseId"`
	ExerciseName      string `json:"exerciseName"`
	MuscleGroup       string `json:"muscleGroup"`
	Equipment         string `json:"equipment"`
}

type backupSet struct {
	ID           string `json:"id"`
	ExerciseID   string `json:"exerciseId"`
	Weight       string `json:"weight"`
	Reps         string `json:"reps"`
	Completed    int    `json:"completed"`
	IsFailureSet int    `json:"isFailureSet"`
}

// Snapshot serializes every row of all three tables into the blob slot,
// replacing any previous blob. Called after each successful mutating
// transaction.
func (m *Mirror) Snapshot(ctx context.Context, db *sql.DB) error {
	doc := backupDocument{Timestamp: time.Now().UTC().Format(time.RFC3339)}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, routine_name, user_name, date, duration_min, volume, description, created_at
		 FROM training_sessions ORDER BY rowid ASC`)
	if err != nil {
		return fmt.Errorf("reading sessions for backup: %w", err)
	}
	for rows.Next() {
		var s backupSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.RoutineName, &s.UserName,
			&s.Date, &s.Duration, &s.Volume, &s.Description, &s.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scanning session for backup: %w", err)
		}
		doc.Sessions = append(doc.Sessions, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx,
		`SELECT id, training_session_id, exercise_id, exercise_name, muscle_group, equipment
		 FROM session_exercises ORDER BY rowid ASC`)
	if err != nil {
		return fmt.Errorf("reading exercises for backup: %w", err)
	}
	for rows.Next() {
		var e backupExercise
		if err := rows.Scan(&e.ID, &e.TrainingSessionID, &e.ExerciseID,
			&e.ExerciseName, &e.MuscleGroup, &e.Equipment); err != nil {
			rows.Close()
			return fmt.Errorf("scanning exercise for backup: %w", err)
		}
		doc.Exercises = append(doc.Exercises, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx,
		`SELECT id, exercise_id, weight, reps, completed, is_failure_set
		 FROM exercise_sets ORDER BY rowid ASC`)
	if err != nil {
		return fmt.Errorf("reading sets for backup: %w", err)
	}
	for rows.Next() {
		var s backupSet
		if err := rows.Scan(&s.ID, &s.ExerciseID, &s.Weight, &s.Reps,
			&s.Completed, &s.IsFailureSet); err != nil {
			rows.Close()
			return fmt.Errorf("scanning set for backup: %w", err)
		}
		doc.Sets = append(doc.Sets, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	if err := m.blobs.Set(backupKey, data); err != nil {
		return fmt.Errorf("storing backup: %w", err)
	}
	return nil
}

// RestoreIfEmpty loads the backup blob into the store, but only when the
// session table is empty: existing data wins unconditionally, with no
// merge or dedup. Rows are inserted with insert-or-ignore inside one
// transaction. A missing blob is not an error.
func (m *Mirror) RestoreIfEmpty(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_sessions`).Scan(&count); err != nil {
		return fmt.Errorf("counting sessions: %w", err)
	}
	if count > 0 {
		return nil
	}

	data, err := m.blobs.Get(backupKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading backup: %w", err)
	}

	var doc backupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding backup: %w", err)
	}

	err = runAtomic(ctx, db, m.log, func(tx *sql.Tx) error {
		for _, s := range doc.Sessions {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO training_sessions (id, user_id, routine_name, user_name, date, duration_min, volume, description, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID, s.UserID, s.RoutineName, s.UserName, s.Date, s.Duration, s.Volume, s.Description, s.CreatedAt)
			if err != nil {
				return fmt.Errorf("restoring session %s: %w", s.ID, err)
			}
		}
		for _, e := range doc.Exercises {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO session_exercises (id, training_session_id, exercise_id, exercise_name, muscle_group, equipment)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, e.TrainingSessionID, e.ExerciseID, e.ExerciseName, e.MuscleGroup, e.Equipment)
			if err != nil {
				return fmt.Errorf("restoring exercise %s: %w", e.ID, err)
			}
		}
		for _, s := range doc.Sets {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO exercise_sets (id, exercise_id, weight, reps, completed, is_failure_set)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				s.ID, s.ExerciseID, s.Weight, s.Reps, s.Completed, s.IsFailureSet)
			if err != nil {
				return fmt.Errorf("restoring set %s: %w", s.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info("restored training history from backup",
		"sessions", len(doc.Sessions), "exercises", len(doc.Exercises), "sets", len(doc.Sets))
	return nil
}
