package runlock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("Lock file holds %q, expected own pid", data)
	}

	lock.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected lock file removed after release")
	}
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()

	// Simulate another live holder with our own pid.
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	if _, err := Acquire(dir); err == nil {
		t.Error("Expected acquire to fail while holder is alive")
	}
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()

	// A pid nobody can have.
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Expected stale lock reclaimed, got: %v", err)
	}
	lock.Release()
}

func TestAcquire_ReclaimsCorruptedLock(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Expected corrupted lock reclaimed, got: %v", err)
	}
	lock.Release()
}

func TestRelease_DoesNotRemoveForeignLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Someone else overwrote the lock; release must leave it alone.
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("424242"), 0o644); err != nil {
		t.Fatalf("overwrite lock: %v", err)
	}
	lock.Release()

	if _, err := os.Stat(path); err != nil {
		t.Error("Expected foreign lock file left in place")
	}
}
