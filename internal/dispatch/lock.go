package dispatch

import (
	"fmt"
	"os"
)

// FileLock provides cross-process mutual exclusion on a lock file next to
// the suppression document. The operating system drops the lock when the
// holding process exits, so a crashed hook never wedges later ones.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a FileLock on path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires an exclusive lock, blocking until available.
func (fl *FileLock) Lock() error {
	return fl.acquire(true)
}

// RLock acquires a shared lock, blocking while a writer holds the lock.
func (fl *FileLock) RLock() error {
	return fl.acquire(false)
}

func (fl *FileLock) acquire(exclusive bool) error {
	if fl.file != nil {
		return fmt.Errorf("lock %s already held", fl.path)
	}

	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f, exclusive); err != nil {
		_ = f.Close()
		return fmt.Errorf("lock %s: %w", fl.path, err)
	}
	fl.file = f
	return nil
}

// Unlock releases the lock and closes the lock file. It is a no-op when
// the lock is not held.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	err := unlockFile(fl.file)
	if cerr := fl.file.Close(); err == nil {
		err = cerr
	}
	fl.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", fl.path, err)
	}
	return nil
}
