package embed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCache_PutGetRoundTrip(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	key := c.Key("hello", "model-a")
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, []float32{1, 2, 3})

	vec, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestDiskCache_DifferentModelsDifferentKeys(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	k1 := c.Key("text", "model-a")
	k2 := c.Key("text", "model-b")
	assert.NotEqual(t, k1, k2)
}

func TestDiskCache_Get_CorruptFile_IsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(dir)
	require.NoError(t, err)

	key := c.Key("x", "m")
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("not json"), 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

type fakeProvider struct {
	calls      [][]string
	model      string
	dim        int
	err        error
	byText     map[string][]float32
}

func (f *fakeProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string{}, texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.byText[t]
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int  { return f.dim }
func (f *fakeProvider) ModelName() string { return f.model }

func TestCachedEmbeddingProvider_ServesHitsWithoutCallingInner(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	inner := &fakeProvider{model: "m", dim: 3, byText: map[string][]float32{
		"a": {1, 0, 0}, "b": {0, 1, 0},
	}}
	p := NewCachedEmbeddingProvider(inner, cache)

	out1, err := p.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, out1)
	assert.Len(t, inner.calls, 1)

	out2, err := p.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Len(t, inner.calls, 1, "second call should be served entirely from cache")
}

func TestCachedEmbeddingProvider_MixedHitMiss_ReinterleavesOrder(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	inner := &fakeProvider{model: "m", dim: 3, byText: map[string][]float32{
		"a": {1, 0, 0}, "b": {0, 1, 0}, "c": {0, 0, 1},
	}}
	p := NewCachedEmbeddingProvider(inner, cache)

	_, err = p.EmbedTexts(context.Background(), []string{"a"})
	require.NoError(t, err)

	out, err := p.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, out[0])
	assert.Equal(t, []float32{0, 1, 0}, out[1])
	assert.Equal(t, []float32{0, 0, 1}, out[2])
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, inner.calls)
}

func TestCachedEmbeddingProvider_InnerError_Propagates(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	inner := &fakeProvider{model: "m", dim: 3, err: errors.New("boom")}
	p := NewCachedEmbeddingProvider(inner, cache)

	_, err = p.EmbedTexts(context.Background(), []string{"a"})
	assert.Error(t, err)
}
