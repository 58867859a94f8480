package stepcache

import (
	"go.uber.org/zap"

	"github.com/pipework/stepcache/cache"
)

type options struct {
	params map[string]any
	rehash IDRehasher
	hasher cache.Hasher
	codec  cache.Codec
	logger *zap.Logger
}

// Option configures a Wrapper.
type Option func(*options)

// WithParams sets the wrapper's hyperparameters. They take no part in cache
// keying, but they are folded into the recomputed identifiers so downstream
// steps observe configuration changes.
func WithParams(params map[string]any) Option {
	return func(o *options) {
		o.params = params
	}
}

// WithIDRehasher replaces the identifier recomputation strategy.
func WithIDRehasher(rehash IDRehasher) Option {
	return func(o *options) {
		o.rehash = rehash
	}
}

// WithHasher sets the digest used for identifier recomputation. Defaults to
// cache.XX64. Has no effect when WithIDRehasher is set.
func WithHasher(h cache.Hasher) Option {
	return func(o *options) {
		o.hasher = h
	}
}

// WithCodec sets the serialization used for identifier recomputation.
// Defaults to cache.Msgpack. Has no effect when WithIDRehasher is set.
func WithCodec(c cache.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger enables structured logging of flushes and hit/miss activity.
// Logging is off (a nop logger) by default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
