package safety

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Event is one denied safety check, serialized as a single JSONL line.
type Event struct {
	Timestamp   string   `json:"timestamp"`
	Context     string   `json:"context"`
	Reason      []string `json:"reason"`
	TextPreview string   `json:"text_preview"`
}

// EventSink receives denied-check events. Implementations must be safe to
// fail: the policy discards append errors.
type EventSink interface {
	Append(ev Event) error
}

// FileSink appends events to a JSONL file, creating parent directories as
// needed. No rotation, no read path.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Append(ev Event) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// MemorySink captures events in memory; used as a test double.
type MemorySink struct {
	Events []Event
}

func (s *MemorySink) Append(ev Event) error {
	s.Events = append(s.Events, ev)
	return nil
}

// discardSink drops all events.
type discardSink struct{}

func (discardSink) Append(Event) error { return nil }
