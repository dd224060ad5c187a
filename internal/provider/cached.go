// Package provider 嵌入缓存装饰器
//
// cached.go 在任意供应商之上增加嵌入向量缓存：同一文本的向量化
// 结果稳定，缓存命中可以省掉一次上游往返。缓存读写失败只降级，
// 不影响嵌入结果。
package provider

import (
	"context"
	"log"
	"time"

	"advisors-admin/internal/shared/cache"
)

// CachedEmbedder 带缓存的嵌入器
type CachedEmbedder struct {
	inner Provider
	cache cache.EmbeddingCache
	ttl   time.Duration
}

// NewCachedEmbedder 包装供应商的嵌入能力
//
// ttl <= 0 时使用缓存层默认 TTL。
func NewCachedEmbedder(inner Provider, c cache.EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

// Name 返回底层供应商名称
func (e *CachedEmbedder) Name() string { return e.inner.Name() }

// Embed 读缓存，未命中时调上游并回填
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, err := e.cache.GetEmbedding(ctx, e.inner.Name(), text); err != nil {
		log.Printf("embedding cache read failed: %v", err)
	} else if len(vec) > 0 {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		if err := e.cache.SetEmbedding(ctx, e.inner.Name(), text, vec, e.ttl); err != nil {
			log.Printf("embedding cache write failed: %v", err)
		}
	}
	return vec, nil
}
