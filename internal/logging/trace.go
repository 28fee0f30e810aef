package logging

import (
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceFile is the file name used by NewTraceLog inside its directory.
const TraceFile = "trace.jsonl"

// TraceLog appends one JSON object per simulated event to a JSONL file.
// It is safe for concurrent use. A nil TraceLog is valid and discards
// everything, so callers never need to check.
type TraceLog struct {
	sink   *traceSink
	fields map[string]any
}

type traceSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewTraceLog opens dir/trace.jsonl for append when level is debug or
// trace. At info and above it returns nil and creates nothing. It also
// returns nil when the file cannot be opened.
func NewTraceLog(dir, level string) *TraceLog {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &TraceLog{sink: &traceSink{file: f}}
}

// With returns a TraceLog sharing the same file that adds fields to every
// event, e.g. the run id.
func (tl *TraceLog) With(fields map[string]any) *TraceLog {
	if tl == nil {
		return nil
	}
	merged := maps.Clone(tl.fields)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return &TraceLog{sink: tl.sink, fields: merged}
}

// Log writes event as a single line. A "time" field is added; the
// caller's map is not modified.
func (tl *TraceLog) Log(event map[string]any) {
	if tl == nil {
		return
	}

	entry := make(map[string]any, len(event)+len(tl.fields)+1)
	maps.Copy(entry, tl.fields)
	maps.Copy(entry, event)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	tl.sink.mu.Lock()
	defer tl.sink.mu.Unlock()
	if tl.sink.file == nil {
		return
	}
	_, _ = tl.sink.file.Write(data)
}

// Close closes the underlying file. Loggers derived with With share it
// and become no-ops afterwards.
func (tl *TraceLog) Close() error {
	if tl == nil {
		return nil
	}
	tl.sink.mu.Lock()
	defer tl.sink.mu.Unlock()
	if tl.sink.file == nil {
		return nil
	}
	err := tl.sink.file.Close()
	tl.sink.file = nil
	return err
}
