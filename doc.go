// Package stepcache provides a transparent, per-item disk cache for
// fit/transform pipeline steps.
//
// A [Wrapper] sits between the pipeline and a [Transformer]. For every item
// in a batch it serves the persisted output when one exists and invokes the
// wrapped transformer (one item at a time) when it does not, writing fresh
// outputs back. Fitting invalidates the entire cache first, since a fitted
// unit may behave differently.
//
// # Quick Start
//
// Wrap a step with a filesystem cache:
//
//	c, err := disk.New[string, string]("/var/cache/pipeline")
//	if err != nil {
//	    return err
//	}
//	w, err := stepcache.New[string, string](step, c)
//	if err != nil {
//	    return err
//	}
//	if err := w.Setup("pipeline/tokenize"); err != nil {
//	    return err
//	}
//
//	out, err := w.Transform(stepcache.NewBatch(ids, inputs, nil))
//
// Entries live at <root>/<stepPath>/value_caching/<key>.<ext>, one file per
// distinct input value, written atomically. Keys derive from input values
// alone, so reruns over overlapping data skip already-computed items.
//
// # Caching strategies
//
// Key derivation and entry serialization are pluggable on each cache
// implementation: cache.XX64 (the default), cache.Digest for cryptographic
// keys, and cache.Msgpack. The cache/memory package provides an in-memory
// implementation, useful as a test double.
//
// # Limits
//
// One wrapper owns its checkpoint path. Concurrent use of one path by
// several wrappers or goroutines is undefined; callers needing that must
// add their own mutual exclusion. There is no eviction and no versioning:
// the cache grows until the next fit (or an explicit Flush on the cache)
// clears it.
package stepcache
