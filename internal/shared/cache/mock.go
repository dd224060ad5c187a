// Package cache 缓存层 mock 实现
package cache

import (
	"context"
	"time"

	"advisors-admin/internal/shared/model"
)

// ============================================================================
// NoOpCache - 空操作的 Cache 实现（Redis 未配置时使用）
// ============================================================================

// NoOpCache 是一个不做任何操作的 Cache 实现，所有读取按未命中处理
type NoOpCache struct{}

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Close 关闭缓存
func (c *NoOpCache) Close() error {
	return nil
}

// EmbeddingCache 方法

func (c *NoOpCache) GetEmbedding(ctx context.Context, provider, text string) ([]float32, error) {
	return nil, nil
}
func (c *NoOpCache) SetEmbedding(ctx context.Context, provider, text string, vec []float32, ttl time.Duration) error {
	return nil
}

// SessionSnapshotCache 方法

func (c *NoOpCache) SetSessionSnapshot(ctx context.Context, session *model.Session, ttl time.Duration) error {
	return nil
}
func (c *NoOpCache) GetSessionSnapshot(ctx context.Context, sessionID string) (*model.Session, error) {
	return nil, nil
}
func (c *NoOpCache) DeleteSessionSnapshot(ctx context.Context, sessionID string) error {
	return nil
}

// 确保 NoOpCache 实现了 Cache 接口
var _ Cache = (*NoOpCache)(nil)
