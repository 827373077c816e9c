// Package lifecycle manages which per-user store file is open and its
// on-disk presence. The app layer uses FilePath and DeleteFile for its
// backup-exclusion and account-removal flows.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gofrs/flock"

	indexerrors "github.com/auralite/trackindex/internal/errors"
	"github.com/auralite/trackindex/internal/store"
)

// Manager owns per-user store selection. A cross-process file lock is held
// for the open store so two processes cannot own one user's index at once.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	store   *store.Store
	lock    *flock.Flock
}

// New creates a Manager for stores under dataDir.
func New(dataDir string, st *store.Store) *Manager {
	return &Manager{dataDir: dataDir, store: st}
}

// Open opens the store for userID, closing any previously open store first.
// Idempotent for the same user.
func (m *Manager) Open(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID == "" {
		return indexerrors.New(indexerrors.ErrCodeInvalidUser,
			"user id must not be empty", nil)
	}
	if m.store.IsOpen() && m.store.UserID() == userID {
		return nil
	}
	if err := m.releaseLock(); err != nil {
		return err
	}

	if m.dataDir != "" {
		lock := flock.New(store.UserDBPath(m.dataDir, userID) + ".lock")
		acquired, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire store lock: %w", err)
		}
		if !acquired {
			return indexerrors.New(indexerrors.ErrCodeStoreLocked,
				fmt.Sprintf("store for user %s is locked by another process", userID), nil)
		}
		m.lock = lock
	}

	if err := m.store.Open(ctx, userID); err != nil {
		_ = m.releaseLock()
		return err
	}
	return nil
}

// Close closes the open store and releases its lock. Safe to call when
// nothing is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Close()
	if lerr := m.releaseLock(); err == nil {
		err = lerr
	}
	return err
}

// FilePath returns the store file path for userID if the file exists.
func (m *Manager) FilePath(userID string) (string, bool) {
	if m.dataDir == "" {
		return "", false
	}
	path := store.UserDBPath(m.dataDir, userID)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// DeleteFile removes the store file for userID outright, closing it first
// if it is the open store. Used when the user is removed.
func (m *Manager) DeleteFile(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.IsOpen() && m.store.UserID() == userID {
		if err := m.store.Close(); err != nil {
			return err
		}
		if err := m.releaseLock(); err != nil {
			return err
		}
	}
	if m.dataDir == "" {
		return nil
	}

	path := store.UserDBPath(m.dataDir, userID)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + ".lock"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	slog.Info("index store deleted", slog.String("user", userID))
	return nil
}

// releaseLock unlocks and drops the current file lock, if any.
func (m *Manager) releaseLock() error {
	if m.lock == nil {
		return nil
	}
	if err := m.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release store lock: %w", err)
	}
	m.lock = nil
	return nil
}
