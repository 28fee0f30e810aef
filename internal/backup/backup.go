// Package backup archives the run store to a single compressed file and
// restores it.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/store"
)

// Archive is the payload of a backup file.
type Archive struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is one run with its full trajectory.
type ArchivedRun struct {
	Run  store.Run   `json:"run"`
	Days []store.Day `json:"days"`
}

// DayCount returns the number of trajectory rows in the archive.
func (a *Archive) DayCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Days)
	}
	return n
}

// DefaultDir returns ~/.epigraph/backups.
func DefaultDir() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GeneratePath creates a timestamped backup filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405.000")
	return filepath.Join(dir, filePrefix+ts+fileSuffix)
}

// Collect reads every run and its trajectory from s.
func Collect(ctx context.Context, s store.RunStore) (*Archive, error) {
	runs, err := s.Runs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for _, run := range runs {
		days, err := s.Days(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read days of run %s: %w", run.ID, err)
		}
		archive.Runs = append(archive.Runs, ArchivedRun{Run: run, Days: days})
	}
	return archive, nil
}

// Backup writes every run in s to outputPath.
func Backup(ctx context.Context, s store.RunStore, outputPath string) (*Header, error) {
	archive, err := Collect(ctx, s)
	if err != nil {
		return nil, err
	}
	return Write(outputPath, archive)
}

// RestoreMode controls how restore handles existing runs.
type RestoreMode string

const (
	// RestoreMerge skips runs whose id already exists (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes every stored run before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode accepts "merge", "replace" or "" (merge).
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("unknown restore mode %q (valid: merge, replace)", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsSkipped  int `json:"runs_skipped"`
	RunsDeleted  int `json:"runs_deleted"`
	DaysRestored int `json:"days_restored"`
}

// Restore loads a backup file into s.
func Restore(ctx context.Context, s store.RunStore, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	if mode == RestoreReplace {
		existing, err := s.Runs(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, run := range existing {
			if err := s.DeleteRun(ctx, run.ID); err != nil {
				return nil, fmt.Errorf("failed to delete run %s: %w", run.ID, err)
			}
			result.RunsDeleted++
		}
	}

	for _, ar := range archive.Runs {
		if mode == RestoreMerge {
			// GetRun also matches prefixes; only an identical id is a duplicate.
			if existing, err := s.GetRun(ctx, ar.Run.ID); err == nil && existing.ID == ar.Run.ID {
				result.RunsSkipped++
				continue
			}
		}

		if _, err := s.CreateRun(ctx, ar.Run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", ar.Run.ID, err)
		}
		for _, day := range ar.Days {
			if err := s.AppendDay(ctx, ar.Run.ID, day); err != nil {
				return nil, fmt.Errorf("failed to restore day %d of run %s: %w", day.Day, ar.Run.ID, err)
			}
			result.DaysRestored++
		}
		result.RunsRestored++
	}
	return result, nil
}
