package jsonfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/benbjohnson/clock"

	"github.com/calvinalkan/jsonfile/pkg/fs"
)

// EnvBaseDir overrides the base directory of [Default].
const EnvBaseDir = "JSONFILE_BASE_DIR"

// Options configures a [Registry]. The zero value is usable.
type Options struct {
	// BaseDir resolves relative paths. It is created if missing.
	// Empty means the working directory at the time of each call.
	BaseDir string

	// FS is the filesystem. Default: [fs.NewReal].
	FS fs.FS

	// Logger receives lifecycle events. Default: a logger that discards
	// everything.
	Logger log.Interface

	// Clock drives the age trigger of the commit policy. Default: wall clock.
	Clock clock.Clock

	// Owner identifies the calling goroutine. Default: the runtime goroutine id.
	Owner func() uint64

	// Perm is the mode of newly written files. Default: 0o644.
	Perm os.FileMode

	// SkipDirSync skips fsync of the parent directory after renames.
	SkipDirSync bool

	// Policy is the initial commit policy of new handles.
	// Default: [DefaultPolicy].
	Policy *CommitPolicy

	// DefaultFormat is used by [OpenType], [ReadType] and for [FormatAuto]
	// in [TypePath] derived names. Default: [FormatIndented].
	DefaultFormat Format
}

// Registry maps canonical paths to live cache entries.
//
// Lookup and construction are safe for concurrent use; each entry is then
// bound to the goroutine that created it.
type Registry struct {
	baseDir       string
	fs            fs.FS
	log           log.Interface
	clock         clock.Clock
	owner         func() uint64
	perm          os.FileMode
	syncDir       bool
	policy        CommitPolicy
	defaultFormat Format

	// mu guards entries. Entries are constructed while it is held so a path
	// is never loaded twice.
	mu      sync.Mutex
	entries map[string]liveEntry

	loads      atomic.Int64
	commits    atomic.Int64
	skips      atomic.Int64
	recoveries atomic.Int64
	evictions  atomic.Int64
}

// NewRegistry builds an isolated registry.
func NewRegistry(opts Options) (*Registry, error) {
	r := &Registry{
		fs:            opts.FS,
		log:           opts.Logger,
		clock:         opts.Clock,
		owner:         opts.Owner,
		perm:          opts.Perm,
		syncDir:       !opts.SkipDirSync,
		policy:        DefaultPolicy(),
		defaultFormat: opts.DefaultFormat,
		entries:       make(map[string]liveEntry),
	}

	if r.fs == nil {
		r.fs = fs.NewReal()
	}

	if r.log == nil {
		r.log = &log.Logger{Handler: discard.Default, Level: log.ErrorLevel}
	}

	if r.clock == nil {
		r.clock = clock.New()
	}

	if r.owner == nil {
		r.owner = goroutineID
	}

	if r.perm == 0 {
		r.perm = 0o644
	}

	if opts.Policy != nil {
		r.policy = *opts.Policy
	}

	if r.defaultFormat == FormatAuto {
		r.defaultFormat = FormatIndented
	}

	if opts.BaseDir != "" {
		abs, err := filepath.Abs(opts.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("jsonfile: base dir: %w", err)
		}

		err = r.fs.MkdirAll(abs, 0o755)
		if err != nil {
			return nil, fmt.Errorf("jsonfile: create base dir: %w", err)
		}

		r.baseDir = abs
	}

	return r, nil
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return NewRegistry(Options{BaseDir: os.Getenv(EnvBaseDir)})
})

// Default returns the process-wide registry, built on first use. Its base
// directory comes from JSONFILE_BASE_DIR.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// resolve returns the absolute path and the registry key for path.
func (r *Registry) resolve(path string) (string, string, error) {
	if path == "" {
		return "", "", errors.New("jsonfile: empty path")
	}

	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("jsonfile: resolve %q: %w", path, err)
	}

	return abs, canonicalKey(abs), nil
}

func canonicalKey(abs string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(abs)
	}

	return abs
}

// Resolve returns the absolute path the registry uses for path.
func (r *Registry) Resolve(path string) (string, error) {
	abs, _, err := r.resolve(path)

	return abs, err
}

// FS returns the registry's filesystem.
func (r *Registry) FS() fs.FS { return r.fs }

// Open returns a handle on the cached value for path, loading it on first
// use. A missing file is created with the default value of T.
//
// A path that is already open must be opened from the same goroutine and
// with the same T; it keeps its current format whatever format is passed.
func Open[T any](r *Registry, path string, format Format) (*Handle[T], error) {
	abs, key, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if live, ok := r.entries[key]; ok {
		if id := r.owner(); id != live.ownerID() {
			return nil, fmt.Errorf("%w: %s belongs to goroutine %d, called from %d", ErrOwnership, abs, live.ownerID(), id)
		}

		e, ok := live.(*entry[T])
		if !ok {
			return nil, fmt.Errorf("%w: %s is open as %s, requested %s", ErrTypeMismatch, abs, live.valueType(), reflect.TypeOf((*T)(nil)).Elem())
		}

		e.refs++

		return newHandle(e), nil
	}

	e, err := newEntry[T](r, abs, key, format, false)
	if err != nil {
		return nil, err
	}

	e.refs = 1
	r.entries[key] = e

	return newHandle(e), nil
}

// Read loads path without caching it. A missing file yields the default
// value of T and is not created.
//
// Read sees what is on disk; unsaved changes of an open handle are not
// visible to it. A path that is open in the registry is read as committed,
// without recovery, and only from the goroutine that owns it: any other
// goroutine gets [ErrOpen], since the owner may be in the middle of a commit.
func Read[T any](r *Registry, path string, format Format) (T, error) {
	var zero T

	abs, key, err := r.resolve(path)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	live, isLive := r.entries[key]
	if isLive && live.ownerID() != r.owner() {
		return zero, fmt.Errorf("%w: %s is open on goroutine %d", ErrOpen, abs, live.ownerID())
	}

	e, err := newEntry[T](r, abs, "", format, isLive)
	if err != nil {
		return zero, err
	}

	return e.value, nil
}

// WriteFile replaces the content of path with v using the same commit
// protocol as a cached save, without caching anything. It fails with
// [ErrOpen] if path is open in the registry.
func WriteFile[T any](r *Registry, path string, format Format, v T) error {
	abs, key, err := r.resolve(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrOpen, abs)
	}

	format = resolveFormat(format, abs)

	c, err := codecFor(format)
	if err != nil {
		return err
	}

	err = c.check(&v)
	if err != nil {
		return err
	}

	data, err := c.marshal(&v)
	if err != nil {
		return fmt.Errorf("jsonfile: encode %s: %w", abs, err)
	}

	comp, _ := CompressionForPath(abs)

	payload, err := compress(comp, data)
	if err != nil {
		return fmt.Errorf("jsonfile: encode %s: %w", abs, err)
	}

	w := newTxWriter(r.fs, abs, r.perm, r.syncDir)

	recovered, err := w.recover()
	if err != nil {
		return fmt.Errorf("jsonfile: recover %s: %w", abs, err)
	}

	if recovered {
		r.recoveries.Add(1)
		r.log.WithFields(log.Fields{"path": abs, "backup": w.bakPath}).Warn("restored interrupted transaction")
	}

	err = w.commit(payload)
	if err != nil {
		return fmt.Errorf("jsonfile: commit %s: %w", abs, err)
	}

	r.commits.Add(1)
	r.log.WithFields(log.Fields{"path": abs, "bytes": len(payload), "format": format.String()}).Debug("committed")

	return nil
}

// OpenType opens the file named after T (see [TypePath]) in the registry's
// default format.
func OpenType[T any](r *Registry) (*Handle[T], error) {
	return Open[T](r, TypePath[T](r.defaultFormat), r.defaultFormat)
}

// ReadType reads the file named after T (see [TypePath]) in the registry's
// default format.
func ReadType[T any](r *Registry) (T, error) {
	return Read[T](r, TypePath[T](r.defaultFormat), r.defaultFormat)
}

func (r *Registry) evict(key string, e liveEntry) {
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[key] == e {
		delete(r.entries, key)
		r.evictions.Add(1)
	}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Stats counts registry activity since construction.
type Stats struct {
	// Loads counts entries constructed from disk or from a default value,
	// including one-shot reads.
	Loads int64

	// Commits counts files written.
	Commits int64

	// Skips counts saves skipped because the content was unchanged.
	Skips int64

	// Recoveries counts interrupted transactions restored.
	Recoveries int64

	// Evictions counts entries removed from the registry.
	Evictions int64
}

// Stats returns a snapshot of the counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Loads:      r.loads.Load(),
		Commits:    r.commits.Load(),
		Skips:      r.skips.Load(),
		Recoveries: r.recoveries.Load(),
		Evictions:  r.evictions.Load(),
	}
}
