package jsonfile

import "time"

// Defaults for [CommitPolicy].
const (
	DefaultMaxChanges int64 = -1
	DefaultMaxAge           = 60 * time.Second
)

// CommitPolicy decides when [Handle.MaybeSave] flushes.
//
// The zero value flushes on every MaybeSave call; use [DefaultPolicy] for
// the usual time-based batching.
type CommitPolicy struct {
	// MaxChanges flushes once this many changes were recorded since the last
	// save. Negative disables the count trigger.
	MaxChanges int64

	// MaxAge flushes once the oldest unsaved change is older than this.
	// Zero disables the time trigger.
	MaxAge time.Duration
}

// DefaultPolicy returns an unlimited change count and a 60 second age limit.
func DefaultPolicy() CommitPolicy {
	return CommitPolicy{MaxChanges: DefaultMaxChanges, MaxAge: DefaultMaxAge}
}

// ShouldCommit reports whether a flush is due. elapsed is only meaningful
// when running is true, i.e. a change was recorded since the last save.
func (p CommitPolicy) ShouldCommit(changes int64, elapsed time.Duration, running bool) bool {
	if p.MaxChanges >= 0 && changes >= p.MaxChanges {
		return true
	}

	return p.MaxAge > 0 && running && elapsed > p.MaxAge
}
