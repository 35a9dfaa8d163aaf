// Package jsonfile provides a process-local, file-backed, reference-counted
// object cache with crash-safe persistence.
//
// A [Registry] maps canonical file paths to one live in-memory value each.
// Every caller that opens the same path receives a [Handle] onto the same
// value; mutations are made directly through the pointer returned by
// [Handle.Value] and written back with [Handle.Save], [Handle.MaybeSave] or
// when the last handle is closed.
//
// # Basic Usage
//
//	reg, err := jsonfile.NewRegistry(jsonfile.Options{BaseDir: "/var/lib/app"})
//	if err != nil {
//	    return err
//	}
//
//	h, err := jsonfile.Open[Settings](reg, "settings.json", jsonfile.FormatAuto)
//	if err != nil {
//	    return err
//	}
//	defer h.Close() // final save
//
//	s, _ := h.Value()
//	s.Theme = "dark"
//	h.IncrementChangeCountAndMaybeSave()
//
// # Persistence
//
// Writes never overwrite the committed file in place. The new content goes
// to a scratch file ($name.tmp) first; the committed file is renamed to a
// transaction marker (name.transaction), the scratch file is renamed into
// place and the marker is removed. When a registry constructs an entry and
// finds a marker, it restores the marker as the committed file: the last
// fully committed snapshot always wins over a possibly complete new one.
//
// Saving content whose serialized form equals the last committed form does
// not touch the filesystem.
//
// # Concurrency
//
// The [Registry] is safe for concurrent use. An entry is not: it belongs to
// the goroutine that created it, and every operation on it from another
// goroutine fails with [ErrOwnership]. Use one registry entry per goroutine,
// or hand values between goroutines yourself.
//
// Nothing coordinates separate processes opening the same path.
//
// # Error Handling
//
// Contract violations ([ErrOwnership], [ErrDisposed], [ErrTypeMismatch]) are
// programming errors and are never retried. [ErrDecode] means the file on
// disk cannot be parsed into the requested type. I/O errors are wrapped and
// returned as-is.
package jsonfile
