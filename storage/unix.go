package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// createFlock acquires an exclusive, non-blocking lock on a ".lock" file
// inside dir, so that a second Open against the same data directory fails
// fast instead of racing the first engine's writes. The spec's Non-goals
// exclude concurrent multi-process writers; this only turns the resulting
// misuse into an immediate error instead of silent corruption.
func createFlock(dir string) (*os.File, error) {
	lockFile, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("locking data directory: %w", err)
	}

	return lockFile, nil
}

// releaseFlock unlocks and closes a lock file obtained from createFlock.
func releaseFlock(lockFile *os.File) error {
	if lockFile == nil {
		return nil
	}
	_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	return lockFile.Close()
}
