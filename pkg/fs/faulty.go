package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Op identifies an operation that [Faulty] can observe and interrupt.
type Op string

// Valid Op values for [Failpoint.Op].
const (
	OpOpen      Op = "open"
	OpOpenFile  Op = "openfile"
	OpReadFile  Op = "readfile"
	OpMkdirAll  Op = "mkdirall"
	OpStat      Op = "stat"
	OpExists    Op = "exists"
	OpRemove    Op = "remove"
	OpRename    Op = "rename"
	OpFileWrite Op = "file.write"
	OpFileSync  Op = "file.sync"
	OpFileClose Op = "file.close"
)

// FaultAction determines what happens when a [Failpoint] triggers.
type FaultAction uint8

const (
	// FaultError makes the operation return [Failpoint.Err] (or [ErrInjected])
	// without touching the underlying filesystem.
	FaultError FaultAction = iota

	// FaultPanic panics with an [*InterruptError] before the operation runs.
	//
	// This simulates the process dying at that point: nothing after the
	// failpoint executes, including error-path cleanup. Recover the panic in
	// the test and inspect the filesystem.
	FaultPanic

	// FaultCall runs [Failpoint.Call] and then lets the operation proceed.
	//
	// This interleaves other work at an exact point of a sequence of
	// operations, for example a second caller between two renames.
	FaultCall
)

// ErrInjected is the default error returned by a [FaultError] failpoint.
var ErrInjected = errors.New("fs: injected fault")

// Failpoint selects an operation to interrupt.
//
// The zero value matches the first operation of any kind on any path.
type Failpoint struct {
	// Op restricts the failpoint to one operation kind. Empty matches all.
	Op Op

	// Path restricts the failpoint to an exact path (cleaned before
	// comparison). For [OpRename] both the source and destination are
	// checked. For file-handle operations the path is the one the handle was
	// opened with. Empty matches all.
	Path string

	// After triggers on the Nth eligible operation (1-indexed).
	// Zero is treated as 1.
	After uint64

	// Action controls how the failpoint fires.
	Action FaultAction

	// Err is returned by [FaultError] failpoints. Defaults to [ErrInjected].
	Err error

	// Call is run by [FaultCall] failpoints, outside of Faulty's lock.
	Call func()
}

// InterruptError is the panic value used by [FaultPanic] failpoints.
//
// It implements [error] and can be identified with errors.As.
type InterruptError struct {
	Op      Op
	Path    string
	NewPath string

	// Seq is the 1-indexed count of eligible operations observed by the failpoint.
	Seq uint64
}

// Error implements [error].
func (e *InterruptError) Error() string {
	msg := fmt.Sprintf("fs: interrupted op=%s seq=%d path=%q", e.Op, e.Seq, e.Path)
	if e.NewPath != "" {
		msg += fmt.Sprintf(" newpath=%q", e.NewPath)
	}

	return msg
}

// Event records one operation observed by [Faulty].
type Event struct {
	Op      Op
	Path    string
	NewPath string

	// Faulted is true when a failpoint fired on this operation.
	Faulted bool
}

// Faulty is a test filesystem wrapper that records every operation and can
// interrupt a chosen one.
//
// Faulty implements [FS] and can be passed anywhere an [FS] is expected.
// Operations that are not interrupted pass through to the wrapped [FS].
//
// Typical usage:
//
//	faulty := fs.NewFaulty(fs.NewReal(), fs.Failpoint{
//		Op:     fs.OpRename,
//		After:  2,
//		Action: fs.FaultPanic,
//	})
//
// Faulty is not meant for production use.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	points []*failpointState
	events []Event
}

type failpointState struct {
	Failpoint

	count uint64
	fired bool
}

// NewFaulty wraps fs. Each failpoint fires at most once.
// Panics if fs is nil.
func NewFaulty(fs FS, points ...Failpoint) *Faulty {
	if fs == nil {
		panic("fs is nil")
	}

	f := &Faulty{fs: fs}
	for _, p := range points {
		f.Arm(p)
	}

	return f
}

// Arm adds a failpoint. Counting starts from the next operation.
func (f *Faulty) Arm(p Failpoint) {
	if p.After == 0 {
		p.After = 1
	}

	if p.Path != "" {
		p.Path = filepath.Clean(p.Path)
	}

	f.mu.Lock()
	f.points = append(f.points, &failpointState{Failpoint: p})
	f.mu.Unlock()
}

// Disarm removes all failpoints that have not fired yet.
func (f *Faulty) Disarm() {
	f.mu.Lock()
	f.points = nil
	f.mu.Unlock()
}

// Events returns a copy of all recorded operations in call order.
func (f *Faulty) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Event, len(f.events))
	copy(out, f.events)

	return out
}

// Count returns how many operations of kind op were observed.
func (f *Faulty) Count(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, e := range f.events {
		if e.Op == op {
			n++
		}
	}

	return n
}

// Reset clears the recorded events. Failpoints are kept.
func (f *Faulty) Reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

// check records the operation and fires a matching failpoint.
func (f *Faulty) check(op Op, path, newPath string) error {
	f.mu.Lock()

	var hit *failpointState

	for _, p := range f.points {
		if p.fired || !p.eligible(op, path, newPath) {
			continue
		}

		p.count++
		if p.count == p.After {
			p.fired = true
			hit = p

			break
		}
	}

	f.events = append(f.events, Event{Op: op, Path: path, NewPath: newPath, Faulted: hit != nil})
	f.mu.Unlock()

	if hit == nil {
		return nil
	}

	switch hit.Action {
	case FaultPanic:
		panic(&InterruptError{Op: op, Path: path, NewPath: newPath, Seq: hit.count})
	case FaultCall:
		if hit.Call != nil {
			hit.Call()
		}

		return nil
	}

	err := hit.Err
	if err == nil {
		err = ErrInjected
	}

	if op == OpRename {
		return &os.LinkError{Op: "rename", Old: path, New: newPath, Err: err}
	}

	return &os.PathError{Op: string(op), Path: path, Err: err}
}

func (p *failpointState) eligible(op Op, path, newPath string) bool {
	if p.Op != "" && p.Op != op {
		return false
	}

	if p.Path == "" {
		return true
	}

	if filepath.Clean(path) == p.Path {
		return true
	}

	return newPath != "" && filepath.Clean(newPath) == p.Path
}

// Open implements [FS].
func (f *Faulty) Open(path string) (File, error) {
	err := f.check(OpOpen, path, "")
	if err != nil {
		return nil, err
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, fs: f, path: path}, nil
}

// OpenFile implements [FS].
func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	err := f.check(OpOpenFile, path, "")
	if err != nil {
		return nil, err
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, fs: f, path: path}, nil
}

// ReadFile implements [FS].
func (f *Faulty) ReadFile(path string) ([]byte, error) {
	err := f.check(OpReadFile, path, "")
	if err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

// MkdirAll implements [FS].
func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	err := f.check(OpMkdirAll, path, "")
	if err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

// Stat implements [FS].
func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	err := f.check(OpStat, path, "")
	if err != nil {
		return nil, err
	}

	return f.fs.Stat(path)
}

// Exists implements [FS].
func (f *Faulty) Exists(path string) (bool, error) {
	err := f.check(OpExists, path, "")
	if err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

// Remove implements [FS].
func (f *Faulty) Remove(path string) error {
	err := f.check(OpRemove, path, "")
	if err != nil {
		return err
	}

	return f.fs.Remove(path)
}

// Rename implements [FS].
func (f *Faulty) Rename(oldpath, newpath string) error {
	err := f.check(OpRename, oldpath, newpath)
	if err != nil {
		return err
	}

	return f.fs.Rename(oldpath, newpath)
}

type faultyFile struct {
	File

	fs   *Faulty
	path string
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	err := ff.fs.check(OpFileWrite, ff.path, "")
	if err != nil {
		return 0, err
	}

	return ff.File.Write(p)
}

func (ff *faultyFile) Sync() error {
	err := ff.fs.check(OpFileSync, ff.path, "")
	if err != nil {
		return err
	}

	return ff.File.Sync()
}

// Close always closes the underlying descriptor, even when a failpoint
// fires, so tests do not leak file handles.
func (ff *faultyFile) Close() (err error) {
	defer func() {
		closeErr := ff.File.Close()
		if err == nil {
			err = closeErr
		}
	}()

	return ff.fs.check(OpFileClose, ff.path, "")
}

// Compile-time interface check.
var _ FS = (*Faulty)(nil)
