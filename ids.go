package stepcache

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pipework/stepcache/cache"
)

// IDRehasher recomputes the batch's current identifiers after a transform.
// It receives the prior identifiers, the wrapper's hyperparameters, and the
// full output collection, and returns one new identifier per prior one.
type IDRehasher func(priorIDs []string, params map[string]any, outputs any) ([]string, error)

// batchRehasher digests the hyperparameters and the whole output collection
// once, then folds each prior identifier with that digest. Downstream steps
// therefore see every identifier change whenever any output or parameter
// changes; per-item change detection is deliberately not offered.
func batchRehasher(keyer cache.Keyer) IDRehasher {
	return func(priorIDs []string, params map[string]any, outputs any) ([]string, error) {
		// Maps encode in iteration order; sort the keys so equal
		// hyperparameters always digest identically.
		pairs := make([][2]any, 0, len(params))
		for _, k := range slices.Sorted(maps.Keys(params)) {
			pairs = append(pairs, [2]any{k, params[k]})
		}
		paramData, err := keyer.Codec().Marshal(pairs)
		if err != nil {
			return nil, fmt.Errorf("hashing hyperparameters: %w", err)
		}
		outData, err := keyer.Codec().Marshal(outputs)
		if err != nil {
			return nil, fmt.Errorf("hashing outputs: %w", err)
		}
		batchSum := keyer.Sum(append(paramData, outData...))

		ids := make([]string, len(priorIDs))
		for i, prior := range priorIDs {
			ids[i] = keyer.Sum([]byte(prior + ":" + batchSum))
		}
		return ids, nil
	}
}
