// Package storage implements the local training-history store: a SQLite
// database owned by a lifecycle Manager, a session store with atomic
// full-graph writes, and a flat-file backup mirror used for crash recovery.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/claude/gymdex/internal/kv"
)

// ErrHandleUnavailable is returned when the database handle could not be
// obtained, including after a pending initialization has failed. Callers
// are expected to Reinitialize or, failing that, ResetHard.
var ErrHandleUnavailable = errors.New("storage: database handle unavailable")

// Manager owns the single database handle and coordinates initialize,
// reinitialize and hard reset. All other components borrow the handle
// for the duration of one call and never cache it.
type Manager struct {
	dbPath string
	blobs  kv.Store
	mirror *Mirror
	log    *slog.Logger

	// Coalesces concurrent Initialize calls: late callers wait on the
	// in-flight attempt and share its result instead of racing to open
	// a second handle.
	init singleflight.Group

	mu sync.Mutex
	db *sql.DB
}

// NewManager creates a Manager for the database file at dbPath, mirroring
// into blobs. The database is not opened until Initialize.
func NewManager(dbPath string, blobs kv.Store, log *slog.Logger) *Manager {
	return &Manager{
		dbPath: dbPath,
		blobs:  blobs,
		mirror: NewMirror(blobs, log),
		log:    log,
	}
}

// Initialize opens the handle, ensures the schema, and restores from the
// backup blob if the store is empty. Safe to call concurrently: at most
// one initialization runs at a time and late callers share its outcome.
// On failure the handle stays nil and the error is returned; there is no
// automatic retry.
func (m *Manager) Initialize(ctx context.Context) error {
	_, err, _ := m.init.Do("initialize", func() (any, error) {
		return nil, m.open(ctx)
	})
	return err
}

func (m *Manager) open(ctx context.Context) error {
	m.mu.Lock()
	if m.db != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// busy_timeout covers the cooperative single-writer model; foreign
	// keys back up the explicit child-first deletes.
	db, err := sql.Open("sqlite", "file:"+m.dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("opening database %s: %w", m.dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return err
	}

	// Backup is best-effort redundancy: a failed restore never blocks
	// startup, the store proceeds with whatever it already holds.
	if err := m.mirror.RestoreIfEmpty(ctx, db); err != nil {
		m.log.Warn("backup restore failed", "error", err)
	}

	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	m.log.Info("training store ready", "path", m.dbPath)
	return nil
}

// Handle returns the ready database handle, or ErrHandleUnavailable if
// the store is closed or a previous initialization failed.
func (m *Manager) Handle() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil, ErrHandleUnavailable
	}
	return m.db, nil
}

// Mirror returns the backup mirror bound to this manager's blob slot.
func (m *Manager) Mirror() *Mirror {
	return m.mirror
}

// Close closes the handle if open. The Manager can be initialized again
// afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Reinitialize discards the current handle and runs Initialize again.
// Used when a caller has detected the handle is unusable.
func (m *Manager) Reinitialize(ctx context.Context) error {
	if err := m.Close(); err != nil {
		m.log.Warn("closing stale handle", "error", err)
	}
	return m.Initialize(ctx)
}

// ResetHard closes the handle, deletes the backup blob and the database
// file, then initializes a fresh store. Destructive and unrecoverable;
// the last resort after Reinitialize has also failed.
func (m *Manager) ResetHard(ctx context.Context) error {
	if err := m.Close(); err != nil {
		m.log.Warn("closing handle for reset", "error", err)
	}
	if err := m.blobs.Remove(backupKey); err != nil {
		m.log.Warn("removing backup blob", "error", err)
	}
	for _, path := range []string{m.dbPath, m.dbPath + "-wal", m.dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	m.log.Info("training store reset", "path", m.dbPath)
	return m.Initialize(ctx)
}

// CheckHealthy probes the handle with a trivial read and reports false on
// any failure instead of returning an error. Callers use it to decide
// whether to Reinitialize before attempting real work.
func (m *Manager) CheckHealthy(ctx context.Context) bool {
	db, err := m.Handle()
	if err != nil {
		return false
	}
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		m.log.Warn("health probe failed", "error", err)
		return false
	}
	return one == 1
}
