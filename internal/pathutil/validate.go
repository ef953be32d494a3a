// Package pathutil confines user-supplied file paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/rumorsim/internal/store"
)

// ArchiveDirName is the directory under ~/.rumorsim/ that holds run archives.
const ArchiveDirName = "backups"

// ErrOutsideAllowed is returned when a path resolves outside every allowed directory.
var ErrOutsideAllowed = errors.New("outside allowed directories")

// RedactPath shortens a path to .../<parent>/<base> for error messages.
// "/home/user/.rumorsim/runs.db" becomes ".../.rumorsim/runs.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath reports whether path lies inside one of allowedDirs once
// cleaned and with symlinks resolved. The file itself need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return errors.New("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return errors.New("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return errors.New("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// Only the parent is resolved; the target may be created later.
	resolvedDir, err := resolveExisting(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, dir := range allowedDirs {
		allowed, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		if allowed, err = resolveExisting(allowed); err != nil {
			continue
		}
		if within(resolved, allowed) {
			return nil
		}
	}

	return fmt.Errorf("path validation failed: %q is %w", RedactPath(absPath), ErrOutsideAllowed)
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path equals base or sits below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

// DefaultArchiveDir returns ~/.rumorsim/backups.
func DefaultArchiveDir() (string, error) {
	global, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, ArchiveDirName), nil
}

// AllowedArchiveDirs returns the directories archives may be read from or
// written to: ~/.rumorsim/backups plus workDir when it is non-empty.
func AllowedArchiveDirs(workDir string) ([]string, error) {
	dir, err := DefaultArchiveDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{dir}
	if workDir != "" {
		dirs = append(dirs, workDir)
	}
	return dirs, nil
}
