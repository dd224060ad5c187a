// Package storage 持久化存储接口定义
//
// Store 是引擎状态的落库接口：角色、触发模式和记忆的写穿与启动恢复。
// 会话状态只存在于内存（可选的 Redis 快照见 cache 包），不经过 Store。
//
// 实现：
//   - repository.Store：基于 database/sql + dbutil.Dialect（PostgreSQL / SQLite）
package storage

import (
	"context"
	"time"

	"advisors-admin/internal/shared/model"
)

// Store 持久化存储接口
type Store interface {
	// ==================== 角色 ====================

	// SaveRole 保存角色（存在则整行覆盖）
	SaveRole(ctx context.Context, role *model.Role) error

	// GetRole 获取角色，不存在返回 ErrNotFound
	GetRole(ctx context.Context, roleID string) (*model.Role, error)

	// ListRoles 列出全部角色（ID 升序）
	ListRoles(ctx context.Context) ([]*model.Role, error)

	// DeleteRole 删除角色
	DeleteRole(ctx context.Context, roleID string) error

	// ==================== 触发模式 ====================

	// SaveTrigger 保存触发模式（存在则整行覆盖）
	SaveTrigger(ctx context.Context, p *model.TriggerPattern) error

	// ListTriggers 列出全部触发模式（按角色、创建时间排序）
	ListTriggers(ctx context.Context) ([]*model.TriggerPattern, error)

	// DeleteTrigger 删除单条触发模式
	DeleteTrigger(ctx context.Context, triggerID string) error

	// DeleteTriggersByRole 删除角色的全部触发模式
	DeleteTriggersByRole(ctx context.Context, roleID string) error

	// ==================== 记忆 ====================

	// SaveMemory 保存记忆（存在则整行覆盖，用于共享列表追加）
	SaveMemory(ctx context.Context, m *model.Memory) error

	// GetMemory 获取记忆，不存在返回 ErrNotFound
	GetMemory(ctx context.Context, memoryID string) (*model.Memory, error)

	// ListMemories 列出全部记忆（创建时间降序）
	ListMemories(ctx context.Context) ([]*model.Memory, error)

	// ListMemoriesByRole 列出角色拥有的记忆（创建时间降序）
	ListMemoriesByRole(ctx context.Context, roleID string) ([]*model.Memory, error)

	// DeleteMemory 删除单条记忆
	DeleteMemory(ctx context.Context, memoryID string) error

	// DeleteMemoriesByRole 删除角色拥有的全部记忆
	DeleteMemoriesByRole(ctx context.Context, roleID string) error

	// DeleteExpiredMemories 物理删除 before 时刻前过期的记忆，返回删除行数
	DeleteExpiredMemories(ctx context.Context, before time.Time) (int64, error)

	// ==================== 连接 ====================

	// Ping 检查存储连通性
	Ping(ctx context.Context) error

	// Close 关闭存储连接
	Close() error
}
