package jsonfile

import (
	"fmt"
	"time"

	"github.com/apex/log"
)

// Handle is one caller's lease on a cached value.
//
// Every handle opened on the same path shares the value; [Handle.Value]
// returns the same pointer for all of them. Mutations are not detected:
// record them with [Handle.IncrementChangeCount] (or replace the value
// with [Handle.Set]) and flush with [Handle.MaybeSave] or [Handle.Save].
//
// The change counter and the age clock belong to the handle, not to the
// shared entry. A Handle must only be used on the goroutine that opened it.
type Handle[T any] struct {
	e      *entry[T]
	closed bool

	policy  CommitPolicy
	changes int64
	since   time.Time
	running bool
}

func newHandle[T any](e *entry[T]) *Handle[T] {
	return &Handle[T]{e: e, policy: e.reg.policy}
}

func (h *Handle[T]) guard() error {
	if id := h.e.reg.owner(); id != h.e.owner {
		return fmt.Errorf("%w: %s belongs to goroutine %d, called from %d", ErrOwnership, h.e.path, h.e.owner, id)
	}

	if h.closed {
		return fmt.Errorf("%w: handle for %s is closed", ErrDisposed, h.e.path)
	}

	return h.e.guard()
}

// Value returns the shared value. The pointer stays valid until the entry
// is released or discarded; mutate through it, then record the change.
func (h *Handle[T]) Value() (*T, error) {
	err := h.guard()
	if err != nil {
		return nil, err
	}

	return &h.e.value, nil
}

// Set replaces the shared value and records one change.
func (h *Handle[T]) Set(v T) error {
	err := h.guard()
	if err != nil {
		return err
	}

	h.e.value = v
	h.record()

	return nil
}

// IncrementChangeCount records one change. The first change since the last
// save starts the age clock.
func (h *Handle[T]) IncrementChangeCount() error {
	err := h.guard()
	if err != nil {
		return err
	}

	h.record()

	return nil
}

func (h *Handle[T]) record() {
	h.changes++

	if !h.running {
		h.since = h.e.reg.clock.Now()
		h.running = true
	}

	h.e.markDirty()
}

// MaybeSave saves if the handle's [CommitPolicy] says a flush is due and
// reports whether it did.
func (h *Handle[T]) MaybeSave() (bool, error) {
	err := h.guard()
	if err != nil {
		return false, err
	}

	var elapsed time.Duration
	if h.running {
		elapsed = h.e.reg.clock.Since(h.since)
	}

	if !h.policy.ShouldCommit(h.changes, elapsed, h.running) {
		return false, nil
	}

	h.e.reg.log.WithFields(log.Fields{
		"path":    h.e.path,
		"changes": h.changes,
		"elapsed": elapsed.String(),
	}).Debug("commit policy triggered")

	err = h.Save()
	if err != nil {
		return false, err
	}

	return true, nil
}

// IncrementChangeCountAndMaybeSave is IncrementChangeCount followed by
// MaybeSave.
func (h *Handle[T]) IncrementChangeCountAndMaybeSave() (bool, error) {
	err := h.IncrementChangeCount()
	if err != nil {
		return false, err
	}

	return h.MaybeSave()
}

// Save flushes now, regardless of the policy, and resets the change
// counter and the age clock. Content that serializes to the committed
// form is not written again.
func (h *Handle[T]) Save() error {
	err := h.guard()
	if err != nil {
		return err
	}

	err = h.e.commit(false)
	if err != nil {
		return err
	}

	h.changes = 0
	h.running = false

	return nil
}

// MigrateToFormat rewrites the file in format f and uses f from then on.
// The rewrite happens even if nothing changed.
func (h *Handle[T]) MigrateToFormat(f Format) error {
	err := h.guard()
	if err != nil {
		return err
	}

	err = h.e.migrate(f)
	if err != nil {
		return err
	}

	h.changes = 0
	h.running = false

	return nil
}

// DiscardAll drops the entry without saving. Every other handle on the
// path is disposed too; the next Open reloads from disk.
func (h *Handle[T]) DiscardAll() error {
	err := h.guard()
	if err != nil {
		return err
	}

	h.closed = true

	return h.e.discard()
}

// Close releases the handle. Closing the last handle on a path saves it
// one final time and evicts it from the registry; the entry is evicted
// even if that save fails.
//
// Close is idempotent, and a no-op on an entry that was already discarded.
func (h *Handle[T]) Close() error {
	if id := h.e.reg.owner(); id != h.e.owner {
		return fmt.Errorf("%w: %s belongs to goroutine %d, called from %d", ErrOwnership, h.e.path, h.e.owner, id)
	}

	if h.closed {
		return nil
	}

	h.closed = true

	if h.e.state == StateReleased || h.e.state == StateDiscarded {
		return nil
	}

	return h.e.release()
}

// ChangeCount returns the number of changes recorded since the last save.
func (h *Handle[T]) ChangeCount() int64 { return h.changes }

// Policy returns the handle's commit policy.
func (h *Handle[T]) Policy() CommitPolicy { return h.policy }

// SetMaxUncommittedChanges sets the change-count trigger. Negative disables it.
func (h *Handle[T]) SetMaxUncommittedChanges(n int64) { h.policy.MaxChanges = n }

// SetMaxUncommittedTime sets the age trigger. Zero disables it.
func (h *Handle[T]) SetMaxUncommittedTime(d time.Duration) { h.policy.MaxAge = d }

// State returns the state of the underlying entry.
func (h *Handle[T]) State() State { return h.e.state }

// Format returns the payload format currently used for the file.
func (h *Handle[T]) Format() Format { return h.e.format }

// Path returns the absolute path of the file.
func (h *Handle[T]) Path() string { return h.e.path }
