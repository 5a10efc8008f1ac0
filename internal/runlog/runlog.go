// Package runlog appends orchestration run records to an append-only JSONL
// log. One record per line, no read path, no rotation; single-process use
// assumed.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"decompbench/internal/models"
)

// Logger is the append-only sink for run records.
type Logger interface {
	LogRun(rec models.RunRecord) error
}

// JSONLLogger appends each record as a single line to a target file,
// creating parent directories as needed.
type JSONLLogger struct {
	Path string
}

// New returns a logger writing to path.
func New(path string) *JSONLLogger {
	return &JSONLLogger{Path: path}
}

func (l *JSONLLogger) LogRun(rec models.RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("runlog: create log dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("runlog: open %s: %w", l.Path, err)
	}
	defer f.Close() //nolint:errcheck

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("runlog: marshal record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("runlog: append record: %w", err)
	}
	return nil
}

// NowISO returns the current UTC time in RFC 3339 form, the timestamp format
// used across run records and safety events.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// MemoryLogger captures records in memory; used as a test double.
type MemoryLogger struct {
	Records []models.RunRecord
}

func (l *MemoryLogger) LogRun(rec models.RunRecord) error {
	l.Records = append(l.Records, rec)
	return nil
}
