package jsonfile

import "github.com/petermattis/goid"

// goroutineID returns the runtime's id for the calling goroutine.
func goroutineID() uint64 {
	return uint64(goid.Get())
}
