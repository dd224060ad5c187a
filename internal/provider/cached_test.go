package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memEmbeddingCache 进程内嵌入缓存，记录命中与写入
type memEmbeddingCache struct {
	mu   sync.Mutex
	data map[string][]float32
	gets int
	sets int
}

func newMemEmbeddingCache() *memEmbeddingCache {
	return &memEmbeddingCache{data: make(map[string][]float32)}
}

func (c *memEmbeddingCache) GetEmbedding(_ context.Context, provider, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[provider+":"+text], nil
}

func (c *memEmbeddingCache) SetEmbedding(_ context.Context, provider, text string, vec []float32, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[provider+":"+text] = vec
	return nil
}

func TestCachedEmbedderRoundTrip(t *testing.T) {
	ctx := context.Background()
	cacheStore := newMemEmbeddingCache()
	embedder := NewCachedEmbedder(NewMock(), cacheStore, time.Hour)

	first, err := embedder.Embed(ctx, "cash flow forecast")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, cacheStore.sets)

	// 第二次命中缓存，不再写入
	second, err := embedder.Embed(ctx, "cash flow forecast")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cacheStore.sets)
	assert.Equal(t, 2, cacheStore.gets)
}

func TestCachedEmbedderSkipsEmptyVector(t *testing.T) {
	ctx := context.Background()
	cacheStore := newMemEmbeddingCache()
	embedder := NewCachedEmbedder(NewMock(), cacheStore, 0)

	// 空文本不可向量化，不应写缓存
	vec, err := embedder.Embed(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, vec)
	assert.Equal(t, 0, cacheStore.sets)
}
