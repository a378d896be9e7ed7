// Package runlock guards the durable state against concurrent runs. The
// ledger and decision log assume a single writer; the lock makes that a
// checked precondition instead of a deployment convention.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a file lock held for the duration of one run.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock without blocking. A held lock means another run
// is in flight and this one must not start.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another run holds the lock at %s", path)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
