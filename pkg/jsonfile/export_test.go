package jsonfile

import "github.com/apex/log"

// Export internals for testing.
// This file is only compiled during tests.

// RefCountForTesting returns the reference count of the live entry for
// path, and whether one exists.
func RefCountForTesting(r *Registry, path string) (int, bool) {
	_, key, err := r.resolve(path)
	if err != nil {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.entries[key]
	if !ok {
		return 0, false
	}

	switch e := live.(type) {
	case interface{ refCount() int }:
		return e.refCount(), true
	default:
		return 0, true
	}
}

func (e *entry[T]) refCount() int { return e.refs }

// LoggerForTesting returns the registry's logger.
func LoggerForTesting(r *Registry) log.Interface { return r.log }

// GoroutineIDForTesting returns the default owner id of the caller.
func GoroutineIDForTesting() uint64 { return goroutineID() }
