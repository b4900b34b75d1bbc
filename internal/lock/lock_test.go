package lock

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestTryAcquireThenReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	if err := l.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !l.Locked() {
		t.Fatal("Locked() = false after TryAcquire")
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestTryAcquireFailsWhileHeldByAnother(t *testing.T) {
	dir := t.TempDir()
	holder := New(dir)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("holder TryAcquire: %v", err)
	}
	defer holder.Release()

	contender := New(dir)
	if err := contender.TryAcquire(); !errors.Is(err, ErrLocked) {
		t.Fatalf("contender TryAcquire = %v, want ErrLocked", err)
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	holder := New(dir)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("holder TryAcquire: %v", err)
	}
	defer holder.Release()

	contender := New(dir)
	start := time.Now()
	if err := contender.Acquire(100 * time.Millisecond); !errors.Is(err, ErrLocked) {
		t.Fatalf("contender Acquire = %v, want ErrLocked", err)
	}
	if time.Since(start) < 90*time.Millisecond {
		t.Fatal("Acquire returned before its timeout elapsed")
	}
}

func TestLockPathIsInsideCacheDir(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	if filepath.Dir(l.path) != dir {
		t.Fatalf("lock path = %s, want directory %s", l.path, dir)
	}
}
