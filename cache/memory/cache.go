// Package memory provides an in-memory value cache, primarily as a test
// double for the disk implementation. Entries are kept as serialized
// payloads so read/write semantics match the persistent cache.
package memory

import (
	"fmt"
	"path"

	"github.com/pipework/stepcache/cache"
)

// Cache implements cache.Cache backed by a map. Not safe for concurrent
// use, matching the contract's single-goroutine model.
type Cache[I, O any] struct {
	keyer   cache.Keyer
	entries map[string][]byte
	path    string
}

type config struct {
	hasher cache.Hasher
	codec  cache.Codec
}

// Option configures a memory cache.
type Option func(*config)

// WithHasher sets the key derivation digest. Defaults to cache.XX64.
func WithHasher(h cache.Hasher) Option {
	return func(c *config) {
		c.hasher = h
	}
}

// WithCodec sets the entry serialization format. Defaults to cache.Msgpack.
func WithCodec(codec cache.Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// New creates an empty in-memory cache.
func New[I, O any](opts ...Option) *Cache[I, O] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache[I, O]{
		keyer:   cache.NewKeyer(cfg.hasher, cfg.codec),
		entries: make(map[string][]byte),
	}
}

// Setup records the step's checkpoint label. There is no directory to
// create; the label is returned so callers can log it like a path.
func (c *Cache[I, O]) Setup(stepPath string) (string, error) {
	c.path = path.Join(stepPath, "value_caching")
	return c.path, nil
}

// Flush discards every entry.
func (c *Cache[I, O]) Flush() error {
	c.entries = make(map[string][]byte)
	return nil
}

// Contains reports whether an entry exists for the item.
func (c *Cache[I, O]) Contains(item I) bool {
	key, err := c.keyer.KeyFor(item)
	if err != nil {
		return false
	}
	_, ok := c.entries[key]
	return ok
}

// Read decodes the stored payload for the item.
func (c *Cache[I, O]) Read(item I) (O, error) {
	var out O
	key, err := c.keyer.KeyFor(item)
	if err != nil {
		return out, err
	}
	data, ok := c.entries[key]
	if !ok {
		return out, fmt.Errorf("%w: no entry for key %s", cache.ErrCorrupt, key)
	}
	if err := c.keyer.Codec().Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: decoding key %s: %w", cache.ErrCorrupt, key, err)
	}
	return out, nil
}

// Write encodes and stores the output keyed by the item.
func (c *Cache[I, O]) Write(item I, output O) error {
	key, err := c.keyer.KeyFor(item)
	if err != nil {
		return err
	}
	data, err := c.keyer.Codec().Marshal(output)
	if err != nil {
		return fmt.Errorf("%w: encoding output: %w", cache.ErrWrite, err)
	}
	c.entries[key] = data
	return nil
}

// KeyFor returns the cache key for the item.
func (c *Cache[I, O]) KeyFor(item I) (string, error) {
	return c.keyer.KeyFor(item)
}

// Len reports the number of stored entries.
func (c *Cache[I, O]) Len() int {
	return len(c.entries)
}

// Corrupt overwrites the stored payload for an item with bytes that cannot
// decode, for exercising corruption handling in tests.
func (c *Cache[I, O]) Corrupt(item I) error {
	key, err := c.keyer.KeyFor(item)
	if err != nil {
		return err
	}
	c.entries[key] = []byte{0xc1} // reserved msgpack byte, never valid
	return nil
}
