// Package lock guards a cache_dir against concurrent patch-hub processes
// stepping on each other's cache writes. It wraps gofrs/flock, the same
// advisory-locking library the pack's reference repos reach for, rather
// than the PID-file-plus-liveness-check scheme this package started from.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by Acquire when another live process already holds
// the lock on cache_dir.
var ErrLocked = errors.New("lock: cache_dir is locked by another process")

// Lock guards a single cache_dir with an OS advisory file lock at
// <cache_dir>/.lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// New creates a Lock for cacheDir. The lock file itself lives inside
// cacheDir so it travels with whichever directory the user configures.
func New(cacheDir string) *Lock {
	path := filepath.Join(cacheDir, ".lock")
	return &Lock{path: path, fl: flock.New(path)}
}

// TryAcquire attempts to take the lock without blocking. It returns
// ErrLocked if another process currently holds it.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("lock: create cache_dir: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock: try-lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Acquire blocks (with a generous ceiling) until the lock is free or a
// stale holder's lock is released by the OS, then takes it. flock locks
// are released automatically if the holding process dies, so there is no
// separate PID-liveness check to perform here.
func (l *Lock) Acquire(timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("lock: create cache_dir: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("lock: try-lock %s: %w", l.path, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLocked
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Release gives up the lock. Safe to call even if the lock was never
// acquired.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("lock: unlock %s: %w", l.path, err)
	}
	return nil
}

// Locked reports whether this process currently holds the lock.
func (l *Lock) Locked() bool {
	return l.fl.Locked()
}

// Status returns a human-readable description, used by the `cache status`
// command.
func (l *Lock) Status() string {
	if l.fl.Locked() {
		return "locked (by this process)"
	}
	probe := flock.New(l.path)
	ok, err := probe.TryLock()
	if err != nil {
		return fmt.Sprintf("unknown: %v", err)
	}
	if !ok {
		return "locked by another process"
	}
	_ = probe.Unlock()
	return "unlocked"
}
