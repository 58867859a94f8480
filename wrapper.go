package stepcache

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pipework/stepcache/cache"
)

// Transformer is the wrapped unit: a pipeline step with a fit/transform
// lifecycle. Fit returns the fitted transformer, which may be a new value;
// the wrapper replaces its wrapped unit with the result rather than
// assuming in-place mutation.
//
// Cache correctness rests on the transformer being deterministic: equal
// inputs must produce equal outputs. That is an obligation on the
// implementation, not something the wrapper can enforce.
type Transformer[I, O any] interface {
	Fit(inputs []I, expected []any) (Transformer[I, O], error)
	Transform(inputs []I) ([]O, error)
}

// Wrapper caches the wrapped transformer's outputs per input value. Items
// whose outputs were persisted by a prior run are served from the cache;
// the rest are transformed one at a time and written back.
//
// A wrapper owns its checkpoint path exclusively. Pointing two wrappers at
// the same path, or calling one wrapper from multiple goroutines, is
// undefined behavior the caller must avoid.
type Wrapper[I, O any] struct {
	wrapped    Transformer[I, O]
	cache      cache.Cache[I, O]
	params     map[string]any
	rehash     IDRehasher
	logger     *zap.Logger
	checkpoint string
}

// New wraps a transformer with value caching backed by c.
func New[I, O any](wrapped Transformer[I, O], c cache.Cache[I, O], opts ...Option) (*Wrapper[I, O], error) {
	if wrapped == nil {
		return nil, errors.New("stepcache: nil wrapped transformer")
	}
	if c == nil {
		return nil, errors.New("stepcache: nil cache")
	}
	cfg := options{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	rehash := cfg.rehash
	if rehash == nil {
		rehash = batchRehasher(cache.NewKeyer(cfg.hasher, cfg.codec))
	}
	return &Wrapper[I, O]{
		wrapped: wrapped,
		cache:   c,
		params:  cfg.params,
		rehash:  rehash,
		logger:  cfg.logger,
	}, nil
}

// Setup creates the wrapper's checkpoint location for the step at stepPath.
// Must be called before FitTransform or Transform. Idempotent.
func (w *Wrapper[I, O]) Setup(stepPath string) error {
	path, err := w.cache.Setup(stepPath)
	if err != nil {
		return err
	}
	w.checkpoint = path
	w.logger.Debug("checkpoint ready",
		zap.String("step_path", stepPath),
		zap.String("checkpoint", path),
	)
	return nil
}

// Wrapped returns the current wrapped transformer. After FitTransform this
// is the fitted unit returned by Fit.
func (w *Wrapper[I, O]) Wrapped() Transformer[I, O] {
	return w.wrapped
}

// FitTransform fits the wrapped transformer on the batch, then transforms
// it with caching. The cache is flushed first: a fit may change the
// wrapped unit's behavior, so every previously cached output is stale by
// definition. The returned batch carries the outputs as its data inputs
// and freshly recomputed identifiers; expected outputs pass through.
func (w *Wrapper[I, O]) FitTransform(b *Batch[I]) (*Batch[O], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if err := w.cache.Flush(); err != nil {
		return nil, err
	}
	w.logger.Debug("cache flushed for fit", zap.String("checkpoint", w.checkpoint))

	fitted, err := w.wrapped.Fit(b.Inputs, b.Expected)
	if err != nil {
		return nil, fmt.Errorf("fitting wrapped transformer: %w", err)
	}
	if fitted == nil {
		return nil, errors.New("stepcache: wrapped transformer Fit returned nil")
	}
	w.wrapped = fitted

	return w.transformBatch(b)
}

// Transform transforms the batch with caching, using the wrapped
// transformer exactly as it is. The cache is left intact, so outputs
// persisted by prior calls are served without invoking the wrapped unit.
func (w *Wrapper[I, O]) Transform(b *Batch[I]) (*Batch[O], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return w.transformBatch(b)
}

func (w *Wrapper[I, O]) transformBatch(b *Batch[I]) (*Batch[O], error) {
	outputs, err := w.transformWithCache(b.Inputs)
	if err != nil {
		return nil, err
	}
	ids, err := w.rehash(b.IDs, w.params, outputs)
	if err != nil {
		return nil, err
	}
	return &Batch[O]{IDs: ids, Inputs: outputs, Expected: b.Expected}, nil
}

// transformWithCache runs the per-item hit/miss loop. Items go to the
// wrapped transformer one at a time so hits and misses can interleave
// freely; output order always matches input order. Any cache error aborts
// the whole call.
func (w *Wrapper[I, O]) transformWithCache(inputs []I) ([]O, error) {
	outputs := make([]O, 0, len(inputs))
	hits := 0
	for i, item := range inputs {
		if w.cache.Contains(item) {
			out, err := w.cache.Read(item)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, out)
			hits++
			continue
		}
		fresh, err := w.wrapped.Transform([]I{item})
		if err != nil {
			return nil, fmt.Errorf("transforming item %d: %w", i, err)
		}
		if len(fresh) != 1 {
			return nil, fmt.Errorf("%w: got %d outputs for one item", ErrOutputCount, len(fresh))
		}
		if err := w.cache.Write(item, fresh[0]); err != nil {
			return nil, err
		}
		outputs = append(outputs, fresh[0])
	}
	w.logger.Debug("transform complete",
		zap.String("checkpoint", w.checkpoint),
		zap.Int("items", len(inputs)),
		zap.Int("hits", hits),
		zap.Int("misses", len(inputs)-hits),
	)
	return outputs, nil
}
