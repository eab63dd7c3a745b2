package filelock

import (
	"fmt"
	"os"
)

// Lock is an advisory lock on a single lock file.
type Lock struct {
	path string
	file *os.File
}

// New creates a Lock for path. The lock file is created on first acquisition;
// its parent directory must already exist.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Held reports whether this Lock currently holds the lock.
func (l *Lock) Held() bool {
	return l.file != nil
}

// Lock acquires an exclusive lock, blocking until available.
func (l *Lock) Lock() error {
	return l.acquire(true, true)
}

// RLock acquires a shared lock, blocking while an exclusive lock is held.
func (l *Lock) RLock() error {
	return l.acquire(false, true)
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns true if the lock was acquired, false if it is held elsewhere.
func (l *Lock) TryLock() (bool, error) {
	err := l.acquire(true, false)
	if err == errWouldBlock {
		return false, nil
	}
	return err == nil, err
}

func (l *Lock) acquire(exclusive, block bool) error {
	if l.file != nil {
		return fmt.Errorf("lock %s already held", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := flock(f, exclusive, block); err != nil {
		_ = f.Close()
		if err == errWouldBlock {
			return err
		}
		return fmt.Errorf("flock %s: %w", l.path, err)
	}
	l.file = f
	return nil
}

// Unlock releases the lock and closes the lock file.
// Unlocking a Lock that is not held is a no-op.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}

	if err := funlock(l.file); err != nil {
		_ = l.file.Close()
		l.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// IsLocked reports whether another holder currently has an exclusive or
// shared lock on path. A missing lock file means nobody holds it.
func IsLocked(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	probe := New(path)
	acquired, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if acquired {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
