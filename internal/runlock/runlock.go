// Package runlock provides the cross-process exclusive lock that keeps
// overlapping refresh runs from stacking. A second invocation that finds the
// lock held exits without refreshing; the next scheduled run tries again.
package runlock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Held represents an acquired run lock. The underlying advisory file lock is
// released by Release, or by the kernel if the process dies first, so an
// abruptly terminated run never wedges the schedule.
type Held struct {
	fl *flock.Flock
}

// Acquire attempts to take the run lock without blocking. The second return
// value reports whether the lock was obtained; false with a nil error means
// another run is in progress.
func Acquire(path string) (*Held, bool, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Held{fl: fl}, true, nil
}

// Release unlocks the run lock. Safe to call on every exit path.
func (h *Held) Release() error {
	if err := h.fl.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
