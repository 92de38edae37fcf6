package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	logFileName  = "data.db"
	tempFileName = "temp.db"
	lockFileName = ".lock"
)

// ensureDataDirectoryExists creates path (and any missing parents) if it
// doesn't already exist, and fails if the path exists but isn't a directory.
func ensureDataDirectoryExists(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, 0o755)
		}
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("path is not a directory")
	}
	return nil
}

// validateWriteAccess verifies the caller can create files in path by
// creating and removing a throwaway file.
func validateWriteAccess(path string) error {
	testPath := filepath.Join(path, "test-access-file")

	testFile, err := os.OpenFile(testPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err := testFile.Close(); err != nil {
		return err
	}

	return os.Remove(testPath)
}

// validateDataPath ensures path exists, is a directory, and is writable.
func validateDataPath(path string) error {
	if path == "" {
		return fmt.Errorf("data directory path is required")
	}

	if err := ensureDataDirectoryExists(path); err != nil {
		return err
	}

	return validateWriteAccess(path)
}
