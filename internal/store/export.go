package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// exportLine is one JSONL line: the run header first, then one line per day.
type exportLine struct {
	Run *Run `json:"run,omitempty"`
	Day *Day `json:"day,omitempty"`
}

// ExportJSONL writes a run and its trajectory to w as JSONL.
func ExportJSONL(ctx context.Context, s RunStore, runID string, w io.Writer) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	days, err := s.Days(ctx, run.ID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(exportLine{Run: run}); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	for i := range days {
		if err := enc.Encode(exportLine{Day: &days[i]}); err != nil {
			return fmt.Errorf("failed to write day %d: %w", days[i].Day, err)
		}
	}
	return nil
}

// ImportJSONL reads a run written by ExportJSONL into s. The run keeps its
// id and creation time.
func ImportJSONL(ctx context.Context, s RunStore, r io.Reader) (Run, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var run Run
	created := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return Run{}, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch {
		case line.Run != nil:
			if created {
				return Run{}, fmt.Errorf("line %d: second run header", lineNum)
			}
			stored, err := s.CreateRun(ctx, *line.Run)
			if err != nil {
				return Run{}, err
			}
			run, created = stored, true
		case line.Day != nil:
			if !created {
				return Run{}, fmt.Errorf("line %d: day before run header", lineNum)
			}
			if err := s.AppendDay(ctx, run.ID, *line.Day); err != nil {
				return Run{}, fmt.Errorf("line %d: %w", lineNum, err)
			}
			run.LastDay = line.Day.Day
			run.Final = line.Day.Counters
		}
	}
	if err := scanner.Err(); err != nil {
		return Run{}, fmt.Errorf("scanner error: %w", err)
	}
	if !created {
		return Run{}, errors.New("no run header found")
	}
	return run, nil
}
