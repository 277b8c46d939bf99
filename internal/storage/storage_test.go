package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/gymdex/internal/kv"
	"github.com/claude/gymdex/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore spins up a fully initialized store over a temp database
// and temp blob directory.
func newTestStore(t *testing.T) (*Manager, *Store) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := kv.NewFileStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	mgr := NewManager(filepath.Join(dir, "training.db"), blobs, testLogger())
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, NewStore(mgr, testLogger())
}

// sampleSession builds a two-exercise session dated at the given instant.
func sampleSession(id, userID string, date time.Time) *models.TrainingSession {
	return &models.TrainingSession{
		ID:              id,
		UserID:          userID,
		RoutineName:     "Push Day",
		UserName:        "Alex",
		Date:            date,
		DurationMinutes: 62,
		Volume:          3980,
		Description:     "felt strong",
		CreatedAt:       date.Add(65 * time.Minute),
		Exercises: []models.SessionExercise{
			{
				ExerciseID:   "bench-press",
				ExerciseName: "Barbell Bench Press",
				MuscleGroup:  "chest",
				Equipment:    "barbell",
				Sets: []models.ExerciseSet{
					{ID: "set-1", Weight: "80", Reps: "8", Completed: true},
					{ID: "set-2", Weight: "85", Reps: "6", Completed: true},
					{ID: "set-3", Weight: "85", Reps: "", Completed: false, IsFailureSet: true},
				},
			},
			{
				ExerciseID:   "overhead-press",
				ExerciseName: "Overhead Press",
				MuscleGroup:  "shoulders",
				Equipment:    "barbell",
				Sets: []models.ExerciseSet{
					{ID: "set-1", Weight: "50", Reps: "10", Completed: true},
				},
			},
		},
	}
}

func mustSave(t *testing.T, store *Store, session *models.TrainingSession) {
	t.Helper()
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession(%s): %v", session.ID, err)
	}
}

// countRows returns per-table row counts for a session id across the
// whole graph.
func countRows(t *testing.T, mgr *Manager, sessionID string) (sessions, exercises, sets int) {
	t.Helper()
	db, err := mgr.Handle()
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ctx := context.Background()
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM training_sessions WHERE id = ?`, sessionID).Scan(&sessions); err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_exercises WHERE training_session_id = ?`, sessionID).Scan(&exercises); err != nil {
		t.Fatalf("counting exercises: %v", err)
	}
	// Match on the row-id prefix rather than joining through
	// session_exercises, so orphaned sets are caught even after their
	// exercise rows are gone.
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exercise_sets WHERE exercise_id LIKE ? || '\_%' ESCAPE '\'`,
		sessionID).Scan(&sets); err != nil {
		t.Fatalf("counting sets: %v", err)
	}
	return sessions, exercises, sets
}
