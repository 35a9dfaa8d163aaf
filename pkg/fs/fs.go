// Package fs provides the filesystem abstraction used by jsonfile.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the cache needs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] and natefinch/atomic
//   - [Faulty]: testing implementation that interrupts chosen operations
//
// Example usage:
//
//	fsys := fs.NewReal()
//	data, err := fsys.ReadFile("settings.json")
//	if err != nil {
//	    return err
//	}
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer] or
// [io.Closer].
//
// Note: [File] includes [io.Writer] even for read-only handles. Like [os.File],
// implementations should return an error from Write when the file wasn't opened
// for writing.
type File interface {
	io.ReadWriteCloser

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	// On a directory handle it makes renames inside the directory durable.
	Sync() error
}

// FS defines the filesystem operations used by the cache and its writer.
//
// Implementations in this package include:
//   - [Real]: production use
//   - [Faulty]: testing use, injects failures or simulated crashes
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file or directory for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename atomically replaces newpath with oldpath.
	// Both paths must be on the same filesystem.
	Rename(oldpath, newpath string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
