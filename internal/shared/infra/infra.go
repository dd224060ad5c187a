// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（PostgreSQL / SQLite）
//   - Cache：缓存（Redis），包含嵌入向量缓存和会话快照
//   - EventBus：事件总线（Redis Streams），承载角色切换事件
package infra

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"advisors-admin/internal/shared/cache"
	"advisors-admin/internal/shared/eventbus"
	"advisors-admin/internal/shared/storage"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 持久化存储（PostgreSQL / SQLite）
	Storage storage.Store

	// Cache 缓存（Redis），包含嵌入向量缓存（EmbeddingCache）
	Cache cache.Cache

	// EventBus 事件总线（Redis）
	EventBus eventbus.EventBus
}

// Close 关闭所有基础设施连接
//
// Cache 和 EventBus 可能共享同一条 Redis 连接，后关闭的一方
// 返回已关闭错误，按正常关闭处理。
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			lastErr = err
		}
	}

	if i.EventBus != nil {
		if err := i.EventBus.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			lastErr = err
		}
	}

	return lastErr
}
