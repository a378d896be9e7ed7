// Package decisionlog appends the per-run audit records as JSON lines.
package decisionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/ports"
)

// FileLog is an append-only JSONL file, one RunRecord per line. Records
// are never rewritten.
type FileLog struct {
	path string
}

var _ ports.DecisionLog = (*FileLog)(nil)

// NewFileLog wires the decision log location.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

// Append writes one record as a single line. The line is marshaled before
// the file is opened so a marshal failure leaves the log untouched.
func (l *FileLog) Append(ctx context.Context, rec domain.RunRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append run record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close decision log: %w", err)
	}
	return nil
}
