// Package redis 嵌入向量缓存操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"advisors-admin/internal/shared/cache"
)

// GetEmbedding 读取缓存的向量，未命中返回 (nil, nil)
func (s *Store) GetEmbedding(ctx context.Context, provider, text string) ([]float32, error) {
	key := fmt.Sprintf("%s%s:%s", cache.KeyEmbedding, provider, cache.TextHash(text))

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return vec, nil
}

// SetEmbedding 写入向量
func (s *Store) SetEmbedding(ctx context.Context, provider, text string, vec []float32, ttl time.Duration) error {
	key := fmt.Sprintf("%s%s:%s", cache.KeyEmbedding, provider, cache.TextHash(text))
	if ttl <= 0 {
		ttl = cache.DefaultEmbeddingTTL
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return nil
}
