// Package audit appends attack findings to a JSONL file so detections
// survive restarts and can be shipped to external tooling. Writes are
// best-effort: a broken audit file must never fail ingestion.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one appended audit line.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	JobID      string    `json:"job_id,omitempty"`
	AttackType string    `json:"attack_type"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
	Content    string    `json:"content"`
}

// Logger serializes appends to one JSONL file.
type Logger struct {
	mu   sync.Mutex
	path string
}

// NewLogger returns a logger writing to path. An empty path disables
// auditing; Record becomes a no-op.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Record appends one event. Errors are returned for callers that want
// to log them, but are safe to ignore.
func (l *Logger) Record(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
