// Package cache 缓存层抽象接口
//
// 提供嵌入向量和会话快照的缓存能力，当前由 Redis 实现。
// Redis 不可用时使用 NoOpCache，所有读取都按未命中处理。
package cache

import (
	"context"
	"time"

	"advisors-admin/internal/shared/model"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// EmbeddingCache 嵌入向量缓存接口
//
// 同一文本的向量化结果稳定，缓存可以省掉重复的上游嵌入调用。
// 键按 (provider, 文本哈希) 组织，不同供应商的向量互不混用。
type EmbeddingCache interface {
	// GetEmbedding 读取缓存的向量，未命中返回 (nil, nil)
	GetEmbedding(ctx context.Context, provider, text string) ([]float32, error)

	// SetEmbedding 写入向量，ttl <= 0 时使用默认 TTL
	SetEmbedding(ctx context.Context, provider, text string, vec []float32, ttl time.Duration) error
}

// SessionSnapshotCache 会话快照缓存接口
//
// 会话路由状态的权威数据在引擎内存里；快照缓存用于横向观察
// （运维查询、多实例只读展示），允许短暂滞后。
type SessionSnapshotCache interface {
	SetSessionSnapshot(ctx context.Context, session *model.Session, ttl time.Duration) error
	GetSessionSnapshot(ctx context.Context, sessionID string) (*model.Session, error)
	DeleteSessionSnapshot(ctx context.Context, sessionID string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// Cache 缓存组合接口
type Cache interface {
	EmbeddingCache
	SessionSnapshotCache
	Close() error
}
