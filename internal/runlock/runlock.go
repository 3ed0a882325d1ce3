// Package runlock prevents two runs from operating on the same project
// directory at once, using a pid file with stale-lock recovery.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is created inside the guarded directory.
const LockFileName = ".run.lock"

// Lock is a held project lock.
type Lock struct {
	path string
	pid  int
}

// Acquire takes the lock for dir. It fails if another live process holds it;
// locks left behind by dead processes are reclaimed.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFileName)

	if data, err := os.ReadFile(path); err == nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && pidAlive(pid) {
			return nil, fmt.Errorf("another run (pid %d) is already active in %s", pid, dir)
		}
		// Stale or corrupted lock.
		os.Remove(path)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

// Release removes the lock if this process still owns it.
func (l *Lock) Release() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid == l.pid {
		os.Remove(l.path)
	}
}

// pidAlive reports whether a process with the given pid exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
