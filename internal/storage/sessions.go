package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/gymdex/internal/models"
)

// Dates are stored as RFC3339 UTC text so lexicographic ordering matches
// chronological ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

// Store provides CRUD over training sessions. It borrows the database
// handle from the Manager per call and mirrors every successful mutation
// into the backup blob.
type Store struct {
	mgr *Manager
	log *slog.Logger
}

// NewStore creates a session store backed by mgr.
func NewStore(mgr *Manager, log *slog.Logger) *Store {
	return &Store{mgr: mgr, log: log}
}

// SaveSession persists a full session graph atomically. Replaying an id
// replaces the whole graph: any previous rows for the session are deleted
// in the same transaction before the new ones are inserted. A successful
// commit triggers a backup snapshot.
func (s *Store) SaveSession(ctx context.Context, session *models.TrainingSession) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}
	db, err := s.mgr.Handle()
	if err != nil {
		return err
	}

	err = runAtomic(ctx, db, s.log, func(tx *sql.Tx) error {
		if err := deleteSessionGraph(ctx, tx, session.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO training_sessions (id, user_id, routine_name, user_name, date, duration_min, volume, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.UserID, session.RoutineName, session.UserName,
			formatTime(session.Date), session.DurationMinutes, session.Volume,
			session.Description, formatTime(session.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}

		for _, ex := range session.Exercises {
			rowID := models.ExerciseRowID(session.ID, ex.ExerciseID)
			_, err := tx.ExecContext(ctx,
				`INSERT INTO session_exercises (id, training_session_id, exercise_id, exercise_name, muscle_group, equipment)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				rowID, session.ID, ex.ExerciseID, ex.ExerciseName, ex.MuscleGroup, ex.Equipment)
			if err != nil {
				return fmt.Errorf("inserting exercise %s: %w", ex.ExerciseID, err)
			}

			for _, set := range ex.Sets {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO exercise_sets (id, exercise_id, weight, reps, completed, is_failure_set)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					set.ID, rowID, set.Weight, set.Reps, boolToInt(set.Completed), boolToInt(set.IsFailureSet))
				if err != nil {
					return fmt.Errorf("inserting set %s: %w", set.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", session.ID, err)
	}

	s.snapshot(ctx, db)
	return nil
}

// Sessions returns all sessions for a user, newest date first, with
// exercises and sets eagerly loaded. An unknown user yields an empty
// slice, not an error.
func (s *Store) Sessions(ctx context.Context, userID string) ([]models.TrainingSession, error) {
	db, err := s.mgr.Handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, routine_name, user_name, date, duration_min, volume, description, created_at
		 FROM training_sessions
		 WHERE user_id = ?
		 ORDER BY date DESC, rowid ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.TrainingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		exercises, err := loadExercises(ctx, db, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Exercises = exercises
	}
	return result, nil
}

// Session returns one session by id with children loaded, or nil when the
// id does not exist. Absence is a normal outcome, not an error.
func (s *Store) Session(ctx context.Context, sessionID string) (*models.TrainingSession, error) {
	db, err := s.mgr.Handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, user_id, routine_name, user_name, date, duration_min, volume, description, created_at
		 FROM training_sessions
		 WHERE id = ?`,
		sessionID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	exercises, err := loadExercises(ctx, db, session.ID)
	if err != nil {
		return nil, err
	}
	session.Exercises = exercises
	return session, nil
}

// DeleteSession removes a session and all descendant rows as one atomic
// unit, then triggers a backup snapshot. Deleting an unknown id is a
// no-op.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	db, err := s.mgr.Handle()
	if err != nil {
		return err
	}

	err = runAtomic(ctx, db, s.log, func(tx *sql.Tx) error {
		return deleteSessionGraph(ctx, tx, sessionID)
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	s.snapshot(ctx, db)
	return nil
}

// snapshot mirrors the store into the backup blob. Backup failures are
// logged and absorbed: the relational store remains the source of truth.
func (s *Store) snapshot(ctx context.Context, db *sql.DB) {
	if err := s.mgr.Mirror().Snapshot(ctx, db); err != nil {
		s.log.Warn("backup snapshot failed", "error", err)
	}
}

// deleteSessionGraph removes set rows, then exercise rows, then the
// session row. Children go first so no orphan can survive a commit.
func deleteSessionGraph(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM exercise_sets WHERE exercise_id IN
		 (SELECT id FROM session_exercises WHERE training_session_id = ?)`,
		sessionID)
	if err != nil {
		return fmt.Errorf("deleting sets: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM session_exercises WHERE training_session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting exercises: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM training_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// loadExercises returns a session's exercises with their sets, in
// insertion order.
func loadExercises(ctx context.Context, q querier, sessionID string) ([]models.SessionExercise, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, exercise_id, exercise_name, muscle_group, equipment
		 FROM session_exercises
		 WHERE training_session_id = ?
		 ORDER BY rowid ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.SessionExercise
	var rowIDs []string
	for rows.Next() {
		var rowID string
		var ex models.SessionExercise
		if err := rows.Scan(&rowID, &ex.ExerciseID, &ex.ExerciseName, &ex.MuscleGroup, &ex.Equipment); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		exercises = append(exercises, ex)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, rowID := range rowIDs {
		sets, err := loadSets(ctx, q, rowID)
		if err != nil {
			return nil, err
		}
		exercises[i].Sets = sets
	}
	return exercises, nil
}

func loadSets(ctx context.Context, q querier, exerciseRowID string) ([]models.ExerciseSet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, weight, reps, completed, is_failure_set
		 FROM exercise_sets
		 WHERE exercise_id = ?
		 ORDER BY rowid ASC`,
		exerciseRowID)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	var sets []models.ExerciseSet
	for rows.Next() {
		var set models.ExerciseSet
		var completed, failure int
		if err := rows.Scan(&set.ID, &set.Weight, &set.Reps, &completed, &failure); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		set.Completed = completed != 0
		set.IsFailureSet = failure != 0
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// scanSession converts one session row into the domain type. Works for
// both *sql.Row and *sql.Rows.
func scanSession(row interface{ Scan(dest ...any) error }) (*models.TrainingSession, error) {
	var session models.TrainingSession
	var date, createdAt string
	err := row.Scan(&session.ID, &session.UserID, &session.RoutineName, &session.UserName,
		&date, &session.DurationMinutes, &session.Volume, &session.Description, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if session.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &session, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
