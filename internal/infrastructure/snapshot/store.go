// Package snapshot persists the single current market snapshot as a JSON
// file, replaced atomically on every save.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/predictionscope/agent/internal/domain"
	"github.com/predictionscope/agent/internal/infrastructure/atomicfile"
	"github.com/predictionscope/agent/internal/ports"
)

// FileStore keeps exactly one snapshot generation at a fixed path.
type FileStore struct {
	path string
}

var _ ports.SnapshotStore = (*FileStore)(nil)

// NewFileStore wires the snapshot file location.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the current snapshot. A missing file means no snapshot has
// been taken yet and returns (nil, nil).
func (s *FileStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the snapshot as a whole; no reader ever observes a
// half-written one.
func (s *FileStore) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, raw); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
