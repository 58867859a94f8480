// Package disk provides a filesystem-backed value cache: one file per cached
// item under a checkpoint directory, named by the item's key.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/pipework/stepcache/cache"
)

const (
	// DefaultRoot is the cache root used when none is configured.
	DefaultRoot = "cache"

	// valueCachingDir labels the caching scheme inside each step's
	// directory, so other checkpoint kinds for the same step never
	// collide with value-cache entries.
	valueCachingDir = "value_caching"

	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// Cache implements cache.Cache on the local filesystem.
//
// Entries live at <root>/<stepPath>/value_caching/<key>.<ext>. Writes go to
// a temporary file first and are renamed into place, so a partially written
// entry is never visible to Contains or Read.
type Cache[I, O any] struct {
	root     string
	dir      string // checkpoint path, set by Setup
	keyer    cache.Keyer
	ext      string
	dirPerm  os.FileMode
	filePerm os.FileMode
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

type config struct {
	hasher   cache.Hasher
	codec    cache.Codec
	dirPerm  os.FileMode
	filePerm os.FileMode
	compress bool
}

// Option configures a disk cache.
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

// WithCompression enables zstd compression of entry payloads. The entry
// file extension gains a ".zst" suffix.
func WithCompression(enabled bool) Option {
	return func(c *config) {
		c.compress = enabled
	}
}

// WithDirPerm sets the permissions for checkpoint directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// WithFilePerm sets the permissions for entry files.
func WithFilePerm(mode os.FileMode) Option {
	return func(c *config) {
		c.filePerm = mode
	}
}

// New creates a disk cache rooted at root. An empty root selects
// DefaultRoot. The checkpoint directory itself is created by Setup.
func New[I, O any](root string, opts ...Option) (*Cache[I, O], error) {
	if root == "" {
		root = DefaultRoot
	}
	cfg := config{
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	keyer := cache.NewKeyer(cfg.hasher, cfg.codec)
	c := &Cache[I, O]{
		root:     root,
		keyer:    keyer,
		ext:      keyer.Codec().Ext(),
		dirPerm:  cfg.dirPerm,
		filePerm: cfg.filePerm,
	}

	if cfg.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		c.enc = enc
		c.dec = dec
		c.ext += ".zst"
	}
	return c, nil
}

// Setup creates the checkpoint directory for the step at stepPath and
// returns it. Safe to call again; an existing directory is kept as is.
func (c *Cache[I, O]) Setup(stepPath string) (string, error) {
	dir := filepath.Join(c.root, stepPath, valueCachingDir)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", cache.ErrPath, dir, err)
	}
	c.dir = dir
	return dir, nil
}

// Flush deletes every entry and recreates the empty checkpoint directory.
// A checkpoint that does not exist yet counts as already empty.
func (c *Cache[I, O]) Flush() error {
	if c.dir == "" {
		return fmt.Errorf("%w: setup not called", cache.ErrFlush)
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("%w: clearing %s: %w", cache.ErrFlush, c.dir, err)
	}
	if err := os.MkdirAll(c.dir, c.dirPerm); err != nil {
		return fmt.Errorf("%w: recreating %s: %w", cache.ErrFlush, c.dir, err)
	}
	return nil
}

// Contains reports whether an entry file exists for the item.
func (c *Cache[I, O]) Contains(item I) bool {
	path, err := c.entryPath(item)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Read loads and decodes the cached output for the item.
func (c *Cache[I, O]) Read(item I) (O, error) {
	var out O
	path, err := c.entryPath(item)
	if err != nil {
		return out, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the key, not user input
	if err != nil {
		return out, fmt.Errorf("%w: reading %s: %w", cache.ErrCorrupt, path, err)
	}
	if c.dec != nil {
		data, err = c.dec.DecodeAll(data, nil)
		if err != nil {
			return out, fmt.Errorf("%w: decompressing %s: %w", cache.ErrCorrupt, path, err)
		}
	}
	if err := c.keyer.Codec().Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: decoding %s: %w", cache.ErrCorrupt, path, err)
	}
	return out, nil
}

// Write encodes the output and persists it keyed by the item, replacing any
// existing entry for that key.
func (c *Cache[I, O]) Write(item I, output O) error {
	path, err := c.entryPath(item)
	if err != nil {
		return err
	}
	data, err := c.keyer.Codec().Marshal(output)
	if err != nil {
		return fmt.Errorf("%w: encoding output: %w", cache.ErrWrite, err)
	}
	if c.enc != nil {
		data = c.enc.EncodeAll(data, nil)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	tmp, err := os.CreateTemp(dir, "entry-*")
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	if err := os.Chmod(tmpPath, c.filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", cache.ErrWrite, err)
	}
	return nil
}

// KeyFor returns the cache key for the item.
func (c *Cache[I, O]) KeyFor(item I) (string, error) {
	return c.keyer.KeyFor(item)
}

// EntryPath returns the file an item's entry would live at, for debugging
// and corruption testing.
func (c *Cache[I, O]) EntryPath(item I) (string, error) {
	return c.entryPath(item)
}

func (c *Cache[I, O]) entryPath(item I) (string, error) {
	if c.dir == "" {
		return "", fmt.Errorf("%w: setup not called", cache.ErrPath)
	}
	key, err := c.keyer.KeyFor(item)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("disk: empty cache key")
	}
	return filepath.Join(c.dir, key+"."+c.ext), nil
}
