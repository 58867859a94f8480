package cache

import "errors"

// Sentinel errors for cache operations. Implementations wrap these so
// callers can classify failures with errors.Is.
var (
	// ErrPath is returned when the checkpoint location cannot be created
	// or accessed.
	ErrPath = errors.New("cache: checkpoint path unavailable")

	// ErrFlush is returned when clearing the cache fails partway through.
	ErrFlush = errors.New("cache: flush failed")

	// ErrCorrupt is returned when an entry reported present cannot be
	// read back or decoded. It is never downgraded to a miss.
	ErrCorrupt = errors.New("cache: corrupt entry")

	// ErrWrite is returned when persisting a fresh output fails.
	ErrWrite = errors.New("cache: write failed")
)
