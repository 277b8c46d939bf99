package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/gymdex/internal/kv"
)

// TestBackupRestoresIntoEmptyStore simulates losing the database file:
// a new manager over the same blob slot must rebuild the full graph from
// the snapshot taken after the last save.
func TestBackupRestoresIntoEmptyStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	blobs, err := kv.NewFileStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	mgr := NewManager(filepath.Join(dir, "training.db"), blobs, testLogger())
	if err := mgr.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	store := NewStore(mgr, testLogger())

	want := sampleSession("sess-1", "user-1", time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC))
	mustSave(t, store, want)
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Fresh database file, same blob slot.
	mgr2 := NewManager(filepath.Join(dir, "training2.db"), blobs, testLogger())
	if err := mgr2.Initialize(ctx); err != nil {
		t.Fatalf("Initialize second store: %v", err)
	}
	t.Cleanup(func() { mgr2.Close() })
	store2 := NewStore(mgr2, testLogger())

	got, err := store2.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Session after restore: %v", err)
	}
	if got == nil {
		t.Fatal("session not restored from backup")
	}
	if got.RoutineName != want.RoutineName || !got.Date.Equal(want.Date) {
		t.Errorf("restored session = %+v, want %+v", got, want)
	}
	if len(got.Exercises) != 2 {
		t.Fatalf("restored exercises = %d, want 2", len(got.Exercises))
	}
	if len(got.Exercises[0].Sets) != 3 {
		t.Errorf("restored sets = %d, want 3", len(got.Exercises[0].Sets))
	}
}

// TestRestoreSkippedWhenStoreNonEmpty: existing relational data wins
// unconditionally, even when the blob holds different rows.
func TestRestoreSkippedWhenStoreNonEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	blobsA, err := kv.NewFileStore(filepath.Join(dir, "blobs-a"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	blobsB, err := kv.NewFileStore(filepath.Join(dir, "blobs-b"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// First store snapshots two sessions into its own blob slot.
	mgrA := NewManager(filepath.Join(dir, "a.db"), blobsA, testLogger())
	if err := mgrA.Initialize(ctx); err != nil {
		t.Fatalf("Initialize A: %v", err)
	}
	storeA := NewStore(mgrA, testLogger())
	mustSave(t, storeA, sampleSession("blob-1", "user-1", time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)))
	mustSave(t, storeA, sampleSession("blob-2", "user-1", time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)))
	mgrA.Close()

	// Second store holds one session of its own, then its blob slot is
	// overwritten with the first store's snapshot to set up the
	// conflict.
	mgrB := NewManager(filepath.Join(dir, "b.db"), blobsB, testLogger())
	if err := mgrB.Initialize(ctx); err != nil {
		t.Fatalf("Initialize B: %v", err)
	}
	t.Cleanup(func() { mgrB.Close() })
	storeB := NewStore(mgrB, testLogger())
	mustSave(t, storeB, sampleSession("own-1", "user-1", time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)))

	foreignBlob, err := blobsA.Get(backupKey)
	if err != nil {
		t.Fatalf("reading blob A: %v", err)
	}
	if err := blobsB.Set(backupKey, foreignBlob); err != nil {
		t.Fatalf("planting foreign blob: %v", err)
	}

	db, err := mgrB.Handle()
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := mgrB.Mirror().RestoreIfEmpty(ctx, db); err != nil {
		t.Fatalf("RestoreIfEmpty: %v", err)
	}

	sessions, err := storeB.Sessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "own-1" {
		t.Errorf("sessions after skipped restore = %+v, want only own-1", sessions)
	}
}

// TestSnapshotTakenAfterDelete: the blob must track deletes, never hold
// data newer than the store's last committed mutation.
func TestSnapshotTakenAfterDelete(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	blobs, err := kv.NewFileStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	mgr := NewManager(filepath.Join(dir, "training.db"), blobs, testLogger())
	if err := mgr.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	store := NewStore(mgr, testLogger())

	mustSave(t, store, sampleSession("keep", "user-1", time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)))
	mustSave(t, store, sampleSession("drop", "user-1", time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)))
	if err := store.DeleteSession(ctx, "drop"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	mgr.Close()

	mgr2 := NewManager(filepath.Join(dir, "training2.db"), blobs, testLogger())
	if err := mgr2.Initialize(ctx); err != nil {
		t.Fatalf("Initialize second store: %v", err)
	}
	t.Cleanup(func() { mgr2.Close() })
	store2 := NewStore(mgr2, testLogger())

	sessions, err := store2.Sessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "keep" {
		t.Errorf("restored sessions = %+v, want only keep", sessions)
	}
}
