package stepcache

// Batch is the wrapper's view of the pipeline's data container: one current
// identifier, one data input, and one expected output per item, in stable
// order. Identifiers and expected outputs are pass-through metadata; cache
// keys are derived from input values alone.
type Batch[T any] struct {
	// IDs are the pipeline-assigned current identifiers, recomputed by
	// the wrapper after each transform so downstream steps can detect
	// upstream changes.
	IDs []string

	// Inputs are the data inputs flowing into the wrapped step.
	Inputs []T

	// Expected are the expected outputs (labels), carried through
	// unchanged. May be nil.
	Expected []any
}

// NewBatch assembles a batch from parallel slices.
func NewBatch[T any](ids []string, inputs []T, expected []any) *Batch[T] {
	return &Batch[T]{IDs: ids, Inputs: inputs, Expected: expected}
}

// Len reports the number of items in the batch.
func (b *Batch[T]) Len() int {
	return len(b.Inputs)
}

func (b *Batch[T]) validate() error {
	if len(b.IDs) != len(b.Inputs) {
		return ErrBatchShape
	}
	if b.Expected != nil && len(b.Expected) != len(b.Inputs) {
		return ErrBatchShape
	}
	return nil
}
