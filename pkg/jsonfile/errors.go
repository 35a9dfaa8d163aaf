package jsonfile

import "errors"

// Sentinel errors returned by jsonfile operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, jsonfile.ErrDecode) {
//	    // the file is corrupt; repair it by hand or remove it
//	}
var (
	// ErrDisposed indicates an operation on a [Handle] that was closed, or on
	// an entry that was released or discarded.
	//
	// This is a programming error.
	ErrDisposed = errors.New("jsonfile: disposed")

	// ErrOwnership indicates an operation on an entry from a goroutine other
	// than the one that created it.
	//
	// This is a programming error. The entry is left untouched.
	ErrOwnership = errors.New("jsonfile: wrong owner")

	// ErrUnsupportedFormat indicates a payload format that is not compiled
	// in or cannot encode the value type (binary requires a proto.Message).
	//
	// Recovery: pick a text format.
	ErrUnsupportedFormat = errors.New("jsonfile: unsupported format")

	// ErrDecode indicates the file content cannot be parsed into the
	// requested type.
	//
	// The file is never repaired automatically.
	ErrDecode = errors.New("jsonfile: decode")

	// ErrTypeMismatch indicates a path that is already open in the registry
	// with a different value type.
	//
	// This is a programming error.
	ErrTypeMismatch = errors.New("jsonfile: type mismatch")

	// ErrOpen indicates a one-shot write to a path that is open in the
	// registry, or a one-shot read of it from a goroutine other than its
	// owner. The live entry would overwrite the write on its next save, and
	// may be in the middle of a commit during the read.
	//
	// Recovery: go through the open [Handle] instead.
	ErrOpen = errors.New("jsonfile: path is open")
)
