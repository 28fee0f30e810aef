package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/backup"
	"github.com/nvandessel/epigraph/internal/store"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every recorded run to a backup file",
		Long: `Backup all recorded runs and their trajectories to a compressed,
checksummed file.

Default location: ~/.epigraph/backups/epigraph-backup-YYYYMMDD-HHMMSS.mmm.jsonl.gz
Older backups in the same directory are pruned by the retention flags
(default: keep the last 10).

Examples:
  epigraph backup
  epigraph backup -o runs.jsonl.gz
  epigraph backup --keep 5 --max-age 30d
  epigraph backup list
  epigraph backup verify <file>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			policy, err := retentionPolicy(cmd)
			if err != nil {
				return err
			}

			if outputPath == "" {
				dir, err := backup.DefaultDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GeneratePath(dir)
			}

			return withStore(cmd, func(rs store.RunStore) error {
				header, err := backup.Backup(cmd.Context(), rs, outputPath)
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}

				deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}

				if jsonOut {
					var size int64
					if info, err := os.Stat(outputPath); err == nil {
						size = info.Size()
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"path":       outputPath,
						"run_count":  header.RunCount,
						"day_count":  header.DayCount,
						"size_bytes": size,
						"deleted":    len(deleted),
					})
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d runs, %d days\n", header.RunCount, header.DayCount)
				fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
				if len(deleted) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old backups\n", len(deleted))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path (default: auto-generated in ~/.epigraph/backups/)")
	cmd.Flags().Int("keep", 10, "Keep at most this many backups (0 = no count limit)")
	cmd.Flags().String("max-age", "", "Delete backups older than this (e.g. 30d, 2w, 72h)")
	cmd.Flags().String("max-size", "", "Cap the total size of kept backups (e.g. 100MB)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

// retentionPolicy combines the retention flags. With none set it keeps
// everything.
func retentionPolicy(cmd *cobra.Command) (backup.RetentionPolicy, error) {
	keep, _ := cmd.Flags().GetInt("keep")
	maxAge, _ := cmd.Flags().GetString("max-age")
	maxSize, _ := cmd.Flags().GetString("max-size")

	if keep < 0 {
		return nil, fmt.Errorf("--keep must be non-negative, got %d", keep)
	}

	var policy backup.AllPolicy
	if keep > 0 {
		policy = append(policy, &backup.CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := backup.ParseDuration(maxAge)
		if err != nil {
			return nil, fmt.Errorf("--max-age: %w", err)
		}
		policy = append(policy, &backup.AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		n, err := backup.ParseSize(maxSize)
		if err != nil {
			return nil, fmt.Errorf("--max-size: %w", err)
		}
		policy = append(policy, &backup.SizePolicy{MaxTotalBytes: n})
	}
	return policy, nil
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in the default backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			backups, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}

			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var totalSize int64
			for _, b := range backups {
				totalSize += b.Size
				fmt.Fprintf(out, "  %s  %8s  %4d runs  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
					formatBytes(b.Size), b.RunCount, filepath.Base(b.Path))
			}
			fmt.Fprintf(out, "Total: %d backups, %s\n", len(backups), formatBytes(totalSize))
			return nil
		},
	}
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1fGB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a backup file against its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.ReadHeader(args[0])
			if err != nil {
				return err
			}
			if err := backup.Verify(args[0]); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status":   "ok",
					"checksum": header.Checksum,
					"runs":     header.RunCount,
					"days":     header.DayCount,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d runs, %d days)\n", header.Checksum, header.RunCount, header.DayCount)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore recorded runs from a backup file",
		Long: `Restore recorded runs from a file written by 'epigraph backup'.

Modes:
  merge   - Skip runs that already exist (default)
  replace - Delete every recorded run first, then restore

Examples:
  epigraph restore ~/.epigraph/backups/epigraph-backup-20260206-120000.000.jsonl.gz
  epigraph restore runs.jsonl.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			return withStore(cmd, func(rs store.RunStore) error {
				result, err := backup.Restore(cmd.Context(), rs, args[0], mode)
				if err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}

				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d runs (%d days), skipped %d, deleted %d\n",
					result.RunsRestored, result.DaysRestored, result.RunsSkipped, result.RunsDeleted)
				return nil
			})
		},
	}
	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")
	return cmd
}
