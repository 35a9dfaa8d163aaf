package jsonfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/apex/log"
)

// State is the lifecycle state of a cached entry.
type State uint8

const (
	// StateLoading is the state while the entry recovers and reads its file.
	StateLoading State = iota

	// StateReady means the content matches the last commit, as far as the
	// entry has been told.
	StateReady

	// StateDirty means a change was recorded since the last commit.
	StateDirty

	// StateSaving is the state while a commit is in progress.
	StateSaving

	// StateReleased is terminal: the last handle was closed.
	StateReleased

	// StateDiscarded is terminal: the entry was dropped without saving.
	StateDiscarded
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateReleased:
		return "released"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// liveEntry is the type-erased view of an entry stored in the registry.
type liveEntry interface {
	ownerID() uint64
	valueType() reflect.Type
}

// entry owns one decoded value and its committed serialized form.
//
// Only the owning goroutine may touch an entry; every operation starts
// with guard.
type entry[T any] struct {
	reg *Registry

	// key is the registry key, empty for one-shot reads.
	key    string
	path   string
	owner  uint64
	format Format
	comp   Compression
	codec  codec
	w      *txWriter

	value     T
	committed []byte
	refs      int
	state     State
}

// newEntry recovers, then loads path. A missing file yields the default
// value, which is persisted right away unless the entry is a one-shot read.
//
// With skipRecover the transient files are left alone; they may belong to
// a commit of a live entry.
func newEntry[T any](r *Registry, path, key string, format Format, skipRecover bool) (*entry[T], error) {
	format = resolveFormat(format, path)

	c, err := codecFor(format)
	if err != nil {
		return nil, err
	}

	comp, _ := CompressionForPath(path)

	e := &entry[T]{
		reg:    r,
		key:    key,
		path:   path,
		owner:  r.owner(),
		format: format,
		comp:   comp,
		codec:  c,
		w:      newTxWriter(r.fs, path, r.perm, r.syncDir),
		state:  StateLoading,
	}

	err = c.check(&e.value)
	if err != nil {
		return nil, err
	}

	logger := r.log.WithField("path", path)

	if !skipRecover {
		recovered, err := e.w.recover()
		if err != nil {
			return nil, fmt.Errorf("jsonfile: recover %s: %w", path, err)
		}

		if recovered {
			r.recoveries.Add(1)
			logger.WithField("backup", e.w.bakPath).Warn("restored interrupted transaction")
		}
	}

	raw, err := r.fs.ReadFile(path)

	switch {
	case err == nil:
		err = e.decode(raw)
		if err != nil {
			return nil, err
		}

	case errors.Is(err, os.ErrNotExist):
		e.value = newDefault[T]()

		if key != "" {
			err = e.commit(true)
			if err != nil {
				return nil, err
			}

			logger.WithField("format", format.String()).Info("created default file")
		}

	default:
		return nil, fmt.Errorf("jsonfile: read %s: %w", path, err)
	}

	r.loads.Add(1)

	e.state = StateReady

	return e, nil
}

func (e *entry[T]) decode(raw []byte) error {
	data, err := decompress(e.comp, raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, e.path, err)
	}

	err = e.codec.unmarshal(data, &e.value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, e.path, err)
	}

	e.committed = data

	return nil
}

func (e *entry[T]) ownerID() uint64 { return e.owner }

func (e *entry[T]) valueType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// guard rejects calls from other goroutines and calls after the entry ended.
func (e *entry[T]) guard() error {
	if id := e.reg.owner(); id != e.owner {
		return fmt.Errorf("%w: %s belongs to goroutine %d, called from %d", ErrOwnership, e.path, e.owner, id)
	}

	if e.state == StateReleased || e.state == StateDiscarded {
		return fmt.Errorf("%w: %s is %s", ErrDisposed, e.path, e.state)
	}

	return nil
}

func (e *entry[T]) markDirty() {
	if e.state == StateReady {
		e.state = StateDirty
	}
}

// save commits the content unless it serializes to the committed form.
func (e *entry[T]) save() error {
	err := e.guard()
	if err != nil {
		return err
	}

	return e.commit(false)
}

func (e *entry[T]) commit(force bool) error {
	data, err := e.codec.marshal(&e.value)
	if err != nil {
		return fmt.Errorf("jsonfile: encode %s: %w", e.path, err)
	}

	// An empty message marshals to nil; nil committed means "never written".
	if data == nil {
		data = []byte{}
	}

	logger := e.reg.log.WithFields(log.Fields{"path": e.path, "format": e.format.String()})

	if !force && e.committed != nil && bytes.Equal(data, e.committed) {
		e.reg.skips.Add(1)

		if e.state == StateDirty {
			e.state = StateReady
		}

		logger.Debug("content unchanged, skipping commit")

		return nil
	}

	prev := e.state
	e.state = StateSaving

	payload, err := compress(e.comp, data)
	if err == nil {
		err = e.w.commit(payload)
	}

	if err != nil {
		e.state = prev
		e.markDirty()

		return fmt.Errorf("jsonfile: commit %s: %w", e.path, err)
	}

	e.committed = data
	e.reg.commits.Add(1)

	if prev != StateLoading {
		e.state = StateReady
	}

	logger.WithField("bytes", len(payload)).Debug("committed")

	return nil
}

// release drops one reference. The last one saves, evicts and ends the entry.
// The entry is evicted even when the final save fails.
func (e *entry[T]) release() error {
	err := e.guard()
	if err != nil {
		return err
	}

	e.refs--
	if e.refs > 0 {
		return nil
	}

	saveErr := e.commit(false)

	e.end(StateReleased)
	e.reg.log.WithField("path", e.path).Debug("released")

	return saveErr
}

// discard drops the entry without saving, for every handle on it.
func (e *entry[T]) discard() error {
	err := e.guard()
	if err != nil {
		return err
	}

	e.end(StateDiscarded)
	e.reg.log.WithField("path", e.path).Debug("discarded")

	return nil
}

func (e *entry[T]) end(state State) {
	e.state = state
	e.reg.evict(e.key, e)

	var zero T

	e.value = zero
	e.committed = nil
}

// migrate switches the payload format and rewrites the file unconditionally.
func (e *entry[T]) migrate(f Format) error {
	err := e.guard()
	if err != nil {
		return err
	}

	if f == FormatAuto {
		return fmt.Errorf("%w: cannot migrate to %s", ErrUnsupportedFormat, f)
	}

	c, err := codecFor(f)
	if err != nil {
		return err
	}

	err = c.check(&e.value)
	if err != nil {
		return err
	}

	from, fromCodec, fromCommitted := e.format, e.codec, e.committed

	e.format = f
	e.codec = c

	err = e.commit(true)
	if err != nil {
		// The file still holds the old format.
		e.format, e.codec, e.committed = from, fromCodec, fromCommitted

		return err
	}

	e.reg.log.WithFields(log.Fields{"path": e.path, "from": from.String(), "to": f.String()}).Info("migrated format")

	return nil
}
