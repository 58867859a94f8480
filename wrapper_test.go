package stepcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pipework/stepcache/cache"
	"github.com/pipework/stepcache/cache/disk"
	"github.com/pipework/stepcache/cache/memory"
)

// doubler doubles each input and counts fit/transform invocations.
type doubler struct {
	fits  *int
	calls *int
}

func newDoubler() doubler {
	return doubler{fits: new(int), calls: new(int)}
}

func (d doubler) Fit(inputs []int, expected []any) (Transformer[int, int], error) {
	*d.fits++
	return d, nil
}

func (d doubler) Transform(in []int) ([]int, error) {
	*d.calls++
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = v * 2
	}
	return out, nil
}

// recordingCache traces the order of cache operations.
type recordingCache struct {
	cache.Cache[int, int]
	ops *[]string
}

func (r recordingCache) Flush() error {
	*r.ops = append(*r.ops, "flush")
	return r.Cache.Flush()
}

func (r recordingCache) Read(item int) (int, error) {
	*r.ops = append(*r.ops, "read")
	return r.Cache.Read(item)
}

func (r recordingCache) Write(item, output int) error {
	*r.ops = append(*r.ops, "write")
	return r.Cache.Write(item, output)
}

func TestTransformCachesPerItem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c, err := disk.New[int, int](root)
	require.NoError(t, err)

	d := newDoubler()
	w, err := New[int, int](d, c, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	batch := NewBatch([]string{"a", "b", "c"}, []int{1, 2, 3}, nil)

	// Empty cache: every item is a miss and gets persisted.
	out, err := w.Transform(batch)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out.Inputs)
	assert.Equal(t, 3, *d.calls)

	entries, err := os.ReadDir(filepath.Join(root, "pipeline", "doubler", "value_caching"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// Same batch again: all hits, the wrapped unit is never invoked.
	out2, err := w.Transform(batch)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out2.Inputs)
	assert.Equal(t, 3, *d.calls)
	assert.Equal(t, out.IDs, out2.IDs, "identical state should recompute identical ids")
}

func TestFitTransformInvalidatesCache(t *testing.T) {
	t.Parallel()

	c, err := disk.New[int, int](t.TempDir())
	require.NoError(t, err)

	d := newDoubler()
	w, err := New[int, int](d, c)
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	batch := NewBatch([]string{"a", "b", "c"}, []int{1, 2, 3}, nil)

	_, err = w.Transform(batch)
	require.NoError(t, err)
	require.Equal(t, 3, *d.calls)

	// Fit flushes, so every item is recomputed even though the results
	// are identical.
	out, err := w.FitTransform(batch)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out.Inputs)
	assert.Equal(t, 1, *d.fits)
	assert.Equal(t, 6, *d.calls)
}

func TestFitFlushesBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	mem := memory.New[int, int]()
	var ops []string
	rec := recordingCache{Cache: mem, ops: &ops}

	d := newDoubler()
	w, err := New[int, int](d, rec)
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	// Seed prior entries, then fit.
	_, err = w.Transform(NewBatch([]string{"a", "b"}, []int{1, 2}, nil))
	require.NoError(t, err)

	ops = ops[:0]
	_, err = w.FitTransform(NewBatch([]string{"a", "b"}, []int{1, 2}, nil))
	require.NoError(t, err)

	require.NotEmpty(t, ops)
	assert.Equal(t, "flush", ops[0])
	assert.NotContains(t, ops, "read", "no entry should survive the flush")
	assert.Equal(t, []string{"flush", "write", "write"}, ops)
}

func TestOrderPreservedAcrossHitsAndMisses(t *testing.T) {
	t.Parallel()

	c := memory.New[int, int]()

	d := newDoubler()
	w, err := New[int, int](d, c)
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	// Pre-seed odd items so hits and misses interleave: 1,3 cached, 2,4 not.
	require.NoError(t, c.Write(1, 2))
	require.NoError(t, c.Write(3, 6))

	out, err := w.Transform(NewBatch([]string{"a", "b", "c", "d"}, []int{1, 2, 3, 4}, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6, 8}, out.Inputs)
	assert.Equal(t, 2, *d.calls, "only the misses invoke the wrapped unit")
}

func TestCorruptEntryAbortsTransform(t *testing.T) {
	t.Parallel()

	c, err := disk.New[int, int](t.TempDir())
	require.NoError(t, err)

	d := newDoubler()
	w, err := New[int, int](d, c)
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	batch := NewBatch([]string{"a", "b", "c"}, []int{1, 2, 3}, nil)
	_, err = w.Transform(batch)
	require.NoError(t, err)

	path, err := c.EntryPath(2)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte{0xc1}, 0o600))

	_, err = w.Transform(batch)
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, 3, *d.calls, "corruption must not fall back to recompute")
}

func TestIdentifierRecomputation(t *testing.T) {
	t.Parallel()

	batch := NewBatch([]string{"a", "b"}, []int{1, 2}, nil)

	run := func(params map[string]any) []string {
		d := newDoubler()
		w, err := New[int, int](d, memory.New[int, int](), WithParams(params))
		require.NoError(t, err)
		require.NoError(t, w.Setup("pipeline/doubler"))
		out, err := w.Transform(batch)
		require.NoError(t, err)
		return out.IDs
	}

	base := run(map[string]any{"depth": 2})
	require.Len(t, base, 2)
	assert.NotEqual(t, base[0], base[1], "distinct prior ids stay distinct")
	assert.NotContains(t, base, "a", "identifiers must be recomputed")

	// Same configuration and outputs: identical identifiers.
	assert.Equal(t, base, run(map[string]any{"depth": 2}))

	// A configuration change must show up downstream.
	assert.NotEqual(t, base, run(map[string]any{"depth": 3}))
}

func TestExpectedOutputsPassThrough(t *testing.T) {
	t.Parallel()

	d := newDoubler()
	w, err := New[int, int](d, memory.New[int, int]())
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	expected := []any{"one", "two"}
	out, err := w.FitTransform(NewBatch([]string{"a", "b"}, []int{1, 2}, expected))
	require.NoError(t, err)
	assert.Equal(t, expected, out.Expected)
}

func TestBatchShapeValidation(t *testing.T) {
	t.Parallel()

	d := newDoubler()
	w, err := New[int, int](d, memory.New[int, int]())
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	_, err = w.Transform(NewBatch([]string{"a"}, []int{1, 2}, nil))
	require.ErrorIs(t, err, ErrBatchShape)

	_, err = w.FitTransform(NewBatch([]string{"a", "b"}, []int{1, 2}, []any{"only"}))
	require.ErrorIs(t, err, ErrBatchShape)
}

// widener returns two outputs per item, violating the one-in-one-out
// contract of the per-item loop.
type widener struct{}

func (widener) Fit(inputs []int, expected []any) (Transformer[int, int], error) {
	return widener{}, nil
}

func (widener) Transform(in []int) ([]int, error) {
	return append(in, in...), nil
}

func TestOutputCountMismatch(t *testing.T) {
	t.Parallel()

	w, err := New[int, int](widener{}, memory.New[int, int]())
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/widener"))

	_, err = w.Transform(NewBatch([]string{"a"}, []int{1}, nil))
	require.ErrorIs(t, err, ErrOutputCount)
}

// failingFit reports a fit failure.
type failingFit struct {
	doubler
}

func (f failingFit) Fit(inputs []int, expected []any) (Transformer[int, int], error) {
	return nil, errors.New("no convergence")
}

func TestFitErrorPropagates(t *testing.T) {
	t.Parallel()

	w, err := New[int, int](failingFit{doubler: newDoubler()}, memory.New[int, int]())
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/failing"))

	_, err = w.FitTransform(NewBatch([]string{"a"}, []int{1}, nil))
	require.ErrorContains(t, err, "no convergence")
}

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	_, err := New[int, int](nil, memory.New[int, int]())
	require.Error(t, err)

	_, err = New[int, int](newDoubler(), nil)
	require.Error(t, err)
}

func TestFittedUnitReplacesWrapped(t *testing.T) {
	t.Parallel()

	d := newDoubler()
	w, err := New[int, int](d, memory.New[int, int]())
	require.NoError(t, err)
	require.NoError(t, w.Setup("pipeline/doubler"))

	_, err = w.FitTransform(NewBatch([]string{"a"}, []int{1}, nil))
	require.NoError(t, err)
	assert.NotNil(t, w.Wrapped())
	assert.Equal(t, 1, *d.fits)
}
