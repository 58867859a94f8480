// Package cache defines the per-item value cache contract used by the
// stepcache wrapper, along with the pluggable hashing and serialization
// strategies shared by its implementations.
//
// Keys are deterministic digests of an item's canonical serialized form, so
// equal items (by value) always map to the same entry. Collisions between
// distinct items are possible in principle and accepted; a cryptographic
// hasher can be configured where that risk matters.
package cache

// Cache stores one transformed output per distinct input value.
//
// Setup must be called before any other operation. Implementations are not
// safe for concurrent use; the wrapper drives them from a single goroutine,
// and sharing one checkpoint path between two instances is undefined
// behavior left to the caller.
type Cache[I, O any] interface {
	// Setup idempotently creates the checkpoint location for the step at
	// stepPath and returns it. Fails with ErrPath if it cannot be created.
	Setup(stepPath string) (string, error)

	// Flush removes every entry and leaves an empty checkpoint behind.
	// After a successful Flush, Contains reports false for all items.
	// Fails with ErrFlush; the cache state after a failed flush is
	// unspecified.
	Flush() error

	// Contains reports whether an entry exists for the item. A missing
	// entry is a plain false, never an error.
	Contains(item I) bool

	// Read returns the cached output for the item. Callers check Contains
	// first; an entry that vanished in between, or one whose payload
	// cannot be decoded, fails with ErrCorrupt.
	Read(item I) (O, error)

	// Write persists the output keyed by the item, replacing any existing
	// entry for that key. Fails with ErrWrite; a failed write never
	// leaves a partial entry that Contains would report as present.
	Write(item I, output O) error

	// KeyFor returns the cache key derived from the item. Pure function
	// of the item and the configured strategies, no I/O.
	KeyFor(item I) (string, error)
}
