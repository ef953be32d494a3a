package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/rumorsim/internal/backup"
	"github.com/nvandessel/rumorsim/internal/pathutil"
	"github.com/nvandessel/rumorsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved runs",
		Long: `List, show and delete runs saved with 'rumorsim run --save'.

Runs are stored in ~/.rumorsim/runs.db unless storage.path is configured.

Examples:
  rumorsim runs list                 # Newest first
  rumorsim runs list --limit 5
  rumorsim runs show <id> --series
  rumorsim runs delete <id>
  rumorsim runs export                # Archive to ~/.rumorsim/backups/
  rumorsim runs import <file>         # Restore runs from an archive
  rumorsim runs archives              # List archives and verify them`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsArchivesCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No saved runs.")
				return nil
			}
			fmt.Fprintf(w, "%-36s  %-19s  %7s  %6s  %9s  %10s  %s\n",
				"ID", "CREATED", "AGENTS", "STEPS", "BELIEVERS", "VICTIM_REP", "HIT")
			for _, r := range runs {
				fmt.Fprintf(w, "%-36s  %-19s  %7d  %6d  %9d  %10.4g  %v\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.PopulationSize, r.Steps, r.FinalBelievers, r.FinalVictimReputation, r.VictimWasHit)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showSeries, _ := cmd.Flags().GetBool("series")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.GetRun(cmd.Context(), args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, rec)
			}

			printRun(cmd.OutOrStdout(), rec)
			if showSeries {
				printSeries(cmd.OutOrStdout(), rec.Series)
			}
			return nil
		},
	}
	cmd.Flags().Bool("series", false, "Print the per-step series")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrRunNotFound) {
					return fmt.Errorf("no run with id %s", args[0])
				}
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]string{
					"status": "deleted",
					"id":     args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive all saved runs to a file",
		Long: `Write every saved run to an archive file.

Default location: ~/.rumorsim/backups/rumorsim-runs-YYYYMMDD-HHMMSS.json.gz
An explicit --output must be inside ~/.rumorsim/backups/ or the current
directory. Archives in the target directory are pruned according to
backup.retention (default: keep the last 10).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			noCompress, _ := cmd.Flags().GetBool("no-compress")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			compress := cfg.Backup.Compression && !noCompress

			if outputPath == "" {
				dir, err := pathutil.DefaultArchiveDir()
				if err != nil {
					return fmt.Errorf("failed to get archive directory: %w", err)
				}
				if compress {
					outputPath = backup.GenerateBackupPath(dir)
				} else {
					outputPath = backup.GenerateBackupPathV1(dir)
				}
			} else if err := validateArchivePath(outputPath); err != nil {
				return fmt.Errorf("export path rejected: %w", err)
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			archive, err := backup.BackupWithOptions(cmd.Context(), s, outputPath, compress)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			policy, err := cfg.Backup.RetentionPolicy()
			if err != nil {
				return err
			}
			if _, err := backup.ApplyRetention(filepath.Dir(outputPath), policy); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var sizeBytes int64
				if info, err := os.Stat(outputPath); err == nil {
					sizeBytes = info.Size()
				}
				return writeJSON(cmd, map[string]any{
					"path":       outputPath,
					"run_count":  len(archive.Runs),
					"version":    archive.Version,
					"compressed": compress,
					"size_bytes": sizeBytes,
				})
			}

			label := "v2/gzip"
			if !compress {
				label = "v1/json"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs (%s)\n", len(archive.Runs), label)
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().String("output", "", "Output file (default: generated in ~/.rumorsim/backups/)")
	cmd.Flags().Bool("no-compress", false, "Write a plain JSON (v1) archive")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore runs from an archive",
		Long: `Restore runs from an archive written by 'rumorsim runs export'.
The archive format is detected automatically.

Modes:
  merge   - Keep runs that already exist (default)
  replace - Overwrite runs that already exist`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}
			if err := validateArchivePath(args[0]); err != nil {
				return fmt.Errorf("import path rejected: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := backup.Restore(cmd.Context(), s, args[0], mode)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Import complete (mode: %s)\n", mode)
			fmt.Fprintf(cmd.OutOrStdout(), "  Runs: %d restored, %d replaced, %d skipped\n",
				result.RunsRestored, result.RunsReplaced, result.RunsSkipped)
			return nil
		},
	}
	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")
	return cmd
}

func newRunsArchivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List run archives and verify their checksums",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := pathutil.DefaultArchiveDir()
			if err != nil {
				return err
			}
			archives, err := backup.ListArchives(dir)
			if err != nil {
				return err
			}

			type archiveStatus struct {
				backup.ArchiveInfo
				RunCount int    `json:"run_count"`
				Status   string `json:"status"`
			}
			statuses := make([]archiveStatus, 0, len(archives))
			for _, a := range archives {
				st := archiveStatus{ArchiveInfo: a, RunCount: -1, Status: "ok"}
				switch a.Version {
				case backup.FormatV2:
					if err := backup.VerifyChecksum(a.Path); err != nil {
						st.Status = "corrupt"
					} else if h, err := backup.ReadV2Header(a.Path); err == nil {
						st.RunCount = h.RunCount
					}
				case backup.FormatV1:
					st.Status = "unverified"
				default:
					st.Status = "unreadable"
				}
				statuses = append(statuses, st)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"dir":      dir,
					"archives": statuses,
					"count":    len(statuses),
				})
			}

			w := cmd.OutOrStdout()
			if len(statuses) == 0 {
				fmt.Fprintf(w, "No archives in %s\n", dir)
				return nil
			}
			for _, st := range statuses {
				runs := "?"
				if st.RunCount >= 0 {
					runs = fmt.Sprintf("%d", st.RunCount)
				}
				fmt.Fprintf(w, "%-45s  v%d  %8d bytes  %4s runs  %s\n",
					filepath.Base(st.Path), st.Version, st.Size, runs, st.Status)
			}
			return nil
		},
	}
}

// validateArchivePath confines a user-supplied archive path to
// ~/.rumorsim/backups and the working directory.
func validateArchivePath(path string) error {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}
	allowed, err := pathutil.AllowedArchiveDirs(wd)
	if err != nil {
		return err
	}
	return pathutil.ValidatePath(path, allowed)
}
