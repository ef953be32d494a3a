// Package backup exports saved runs to archive files and restores them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/store"
)

// FilePrefix starts every generated archive name.
const FilePrefix = "rumorsim-runs-"

// Archive is the payload of an archive file.
type Archive struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	Runs      []*models.RunRecord `json:"runs"`
}

// Backup writes every saved run to a compressed archive at outputPath.
func Backup(ctx context.Context, runStore store.RunStore, outputPath string) (*Archive, error) {
	return BackupWithOptions(ctx, runStore, outputPath, true)
}

// BackupWithOptions writes every saved run to outputPath, gzip-compressed
// (FormatV2) or as plain JSON (FormatV1).
func BackupWithOptions(ctx context.Context, runStore store.RunStore, outputPath string, compress bool) (*Archive, error) {
	summaries, err := runStore.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatV1,
		CreatedAt: time.Now(),
		Runs:      make([]*models.RunRecord, 0, len(summaries)),
	}
	for _, sum := range summaries {
		run, err := runStore.GetRun(ctx, sum.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", sum.ID, err)
		}
		archive.Runs = append(archive.Runs, run)
	}

	if compress {
		archive.Version = FormatV2
		if err := WriteV2(outputPath, archive); err != nil {
			return nil, err
		}
		return archive, nil
	}

	if err := writeV1(outputPath, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

func writeV1(path string, archive *Archive) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(archive); err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	return nil
}

// RestoreMode controls how restore treats runs that already exist.
type RestoreMode string

const (
	// RestoreMerge keeps existing runs and skips archived copies (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites existing runs with the archived copy.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode maps "", "merge" and "replace" to a RestoreMode.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch s {
	case "", string(RestoreMerge):
		return RestoreMerge, nil
	case string(RestoreReplace):
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("unknown restore mode %q (want merge or replace)", s)
	}
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsReplaced int `json:"runs_replaced"`
	RunsSkipped  int `json:"runs_skipped"`
}

// Restore loads an archive of either format and saves its runs into runStore.
// Runs keep their IDs and creation times.
func Restore(ctx context.Context, runStore store.RunStore, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := ReadArchive(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, run := range archive.Runs {
		if run == nil {
			continue
		}

		exists := false
		if run.ID != "" {
			_, err := runStore.GetRun(ctx, run.ID)
			switch {
			case err == nil:
				exists = true
			case !errors.Is(err, store.ErrRunNotFound):
				return nil, fmt.Errorf("failed to check run %s: %w", run.ID, err)
			}
		}

		if exists {
			if mode != RestoreReplace {
				result.RunsSkipped++
				continue
			}
			if err := runStore.DeleteRun(ctx, run.ID); err != nil {
				return nil, fmt.Errorf("failed to replace run %s: %w", run.ID, err)
			}
		}

		if _, err := runStore.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
		if exists {
			result.RunsReplaced++
		} else {
			result.RunsRestored++
		}
	}

	return result, nil
}

// GenerateBackupPath returns a timestamped .json.gz path in dir.
func GenerateBackupPath(dir string) string {
	return filepath.Join(dir, FilePrefix+time.Now().Format("20060102-150405")+".json.gz")
}

// GenerateBackupPathV1 returns a timestamped .json path in dir.
func GenerateBackupPathV1(dir string) string {
	return filepath.Join(dir, FilePrefix+time.Now().Format("20060102-150405")+".json")
}
