package stepcache

import (
	"errors"

	"github.com/pipework/stepcache/cache"
)

// Sentinel errors for wrapper operations.
var (
	// ErrBatchShape is returned when a batch's identifier, input, and
	// expected-output counts disagree.
	ErrBatchShape = errors.New("stepcache: batch slice lengths differ")

	// ErrOutputCount is returned when the wrapped transformer produces a
	// number of outputs other than one for a single-item input.
	ErrOutputCount = errors.New("stepcache: unexpected output count from wrapped transformer")
)

// Errors re-exported from cache so wrapper callers can classify cache
// failures without importing the subpackage.
var (
	// ErrPath is returned when the checkpoint path cannot be created.
	ErrPath = cache.ErrPath

	// ErrFlush is returned when invalidating the cache fails.
	ErrFlush = cache.ErrFlush

	// ErrCorrupt is returned when a present entry cannot be read back.
	ErrCorrupt = cache.ErrCorrupt

	// ErrWrite is returned when persisting a fresh output fails.
	ErrWrite = cache.ErrWrite
)
