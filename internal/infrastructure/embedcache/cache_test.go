package embedcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbedderCachesByText(t *testing.T) {
	inner := &countingEmbedder{}
	cached := New(inner, "bge-m3", 2)

	first, err := cached.EmbedQuery(context.Background(), "engine")
	require.NoError(t, err)
	second, err := cached.EmbedQuery(context.Background(), "engine")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cached.Len())
}

func TestEmbedderEvictsLeastRecent(t *testing.T) {
	inner := &countingEmbedder{}
	cached := New(inner, "bge-m3", 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "a"} {
		_, err := cached.EmbedQuery(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, inner.calls)
}

func TestEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	cached := New(inner, "bge-m3", 0)

	_, err := cached.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	_, err = cached.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.Len())
}
