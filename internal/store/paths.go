package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-user rumorsim directory under $HOME.
const DirName = ".rumorsim"

// DBFileName is the default SQLite database name inside DirName.
const DBFileName = "runs.db"

// GlobalPath returns the path to the global .rumorsim directory.
// On Unix: ~/.rumorsim
// On Windows: %USERPROFILE%\.rumorsim
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// DefaultDBPath returns ~/.rumorsim/runs.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFileName), nil
}

// EnsureGlobalDir creates the global .rumorsim directory if it doesn't exist.
func EnsureGlobalDir() error {
	globalPath, err := GlobalPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(globalPath, 0700); err != nil {
		return fmt.Errorf("failed to create global .rumorsim directory: %w", err)
	}

	return nil
}
