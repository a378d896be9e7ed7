// Package ledger stores the durable, slug-unique record of every article
// ever produced, as a single JSON file in the data directory.
package ledger

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

// FileLedger is the append-only content ledger. Appends rewrite the whole
// file atomically, one durable mutation per run. Entries are never
// deleted here; editorial removal is an external action.
type FileLedger struct {
	path string
}

var _ ports.Ledger = (*FileLedger)(nil)

// NewFileLedger wires the ledger file location.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

// Entries returns every ledger entry in stored order. A missing file is
// an empty ledger, not an error.
func (l *FileLedger) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var entries []domain.LedgerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	return entries, nil
}

// Slugs returns the set of slugs ever produced.
func (l *FileLedger) Slugs(ctx context.Context) (map[string]struct{}, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}

	slugs := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		slugs[e.Slug] = struct{}{}
	}
	return slugs, nil
}

// Append folds the batch into the ledger and rewrites it atomically. An
// entry whose slug already exists is skipped; existing entries are never
// overwritten.
func (l *FileLedger) Append(ctx context.Context, batch []domain.LedgerEntry) error {
	if len(batch) == 0 {
		return nil
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e.Slug] = struct{}{}
	}

	for _, e := range batch {
		if _, dup := known[e.Slug]; dup {
			continue
		}
		known[e.Slug] = struct{}{}
		entries = append(entries, e)
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := atomicfile.WriteFile(l.path, raw); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
