// Package model 定义核心数据模型
//
// memory.go 包含记忆相关的数据模型定义：
//   - Memory：记忆条目
//   - MemoryType：记忆类型枚举
//   - Importance：重要性枚举
//   - MemoryQuery：记忆查询
//
// 记忆类型：
//   - session：会话记忆（一次对话的问答，过期最快）
//   - user：用户记忆（用户偏好/事实，中等存活期）
//   - knowledge：知识记忆（领域知识，可永不过期）
//
// 设计理念：
//   - 记忆按所属角色（Role）组织，支持显式共享和父子继承
//   - 支持向量检索（通过 Embedding 字段，向量由外部嵌入服务生成）
//   - 惰性过期：过期记忆在所有读路径被排除，物理删除由后台清理完成
package model

import (
	"slices"
	"time"
)

// ============================================================================
// MemoryType - 记忆类型枚举
// ============================================================================

// MemoryType 记忆类型
type MemoryType string

const (
	// MemoryTypeSession 会话记忆：单次对话的问答记录
	MemoryTypeSession MemoryType = "session"

	// MemoryTypeUser 用户记忆：用户偏好、习惯、事实
	MemoryTypeUser MemoryType = "user"

	// MemoryTypeKnowledge 知识记忆：领域知识和长期经验
	MemoryTypeKnowledge MemoryType = "knowledge"
)

// Valid 判断是否为合法的记忆类型
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryTypeSession, MemoryTypeUser, MemoryTypeKnowledge:
		return true
	}
	return false
}

// ============================================================================
// Importance - 重要性枚举
// ============================================================================

// Importance 记忆重要性
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Valid 判断是否为合法的重要性
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Weight 返回检索排序使用的重要性权重
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceLow:
		return 0.3
	case ImportanceHigh:
		return 1.0
	default: // medium 及未知值
		return 0.6
	}
}

// ============================================================================
// Memory - 记忆条目
// ============================================================================

// Memory 记忆条目
//
// Memory 是角色的记忆单元，支持向量检索、共享和继承。
//
// 生命周期：
//   - 由 Context Assembler 在一次问答完成后写入，或通过显式 remember 操作写入
//   - 除 SharedWith 追加外不做原地修改
//   - ExpiresAt 到期后从读路径消失，由维护清理物理删除
type Memory struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// RoleID 所属角色
	RoleID string `json:"role_id" db:"role_id"`

	// Content 记忆内容（文本形式）
	Content string `json:"content" db:"content"`

	// Type 记忆类型，决定过期策略
	Type MemoryType `json:"type" db:"type"`

	// Importance 重要性，参与检索排序
	Importance Importance `json:"importance" db:"importance"`

	// Embedding 向量表示（用于语义检索），由外部嵌入服务生成
	Embedding []float32 `json:"embedding,omitempty" db:"embedding"`

	// Tags 标签（用于分类和过滤）
	Tags []string `json:"tags,omitempty" db:"tags"`

	// Category 主分类（可选，单值）
	Category string `json:"category,omitempty" db:"category"`

	// SharedWith 显式授予读权限的角色 ID 列表
	SharedWith []string `json:"shared_with,omitempty" db:"shared_with"`

	// ParentMemoryID 派生来源记忆（可选）
	ParentMemoryID string `json:"parent_memory_id,omitempty" db:"parent_memory_id"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ExpiresAt 过期时间（可选，knowledge 类型可为空=永不过期）
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// IsExpired 判断记忆在 now 时刻是否已过期
func (m *Memory) IsExpired(now time.Time) bool {
	if m.ExpiresAt == nil {
		return false
	}
	return now.After(*m.ExpiresAt)
}

// HasEmbedding 判断是否有向量表示
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// IsSharedWith 判断是否显式共享给指定角色
func (m *Memory) IsSharedWith(roleID string) bool {
	return slices.Contains(m.SharedWith, roleID)
}

// HasTag 判断是否带有指定标签
func (m *Memory) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// ============================================================================
// MemoryQuery - 记忆查询
// ============================================================================

// MemoryQuery 记忆列表/检索过滤参数
type MemoryQuery struct {
	// Type 记忆类型过滤（空值表示不过滤）
	Type MemoryType `json:"type,omitempty"`

	// Category 主分类过滤
	Category string `json:"category,omitempty"`

	// Tags 标签过滤（至少命中一个）
	Tags []string `json:"tags,omitempty"`

	// IncludeShared 是否包含其他角色共享来的记忆
	IncludeShared bool `json:"include_shared"`

	// IncludeInherited 是否包含父角色继承来的记忆
	IncludeInherited bool `json:"include_inherited"`
}

// Match 判断记忆是否满足过滤条件（不含共享/继承可见性判断）
func (q *MemoryQuery) Match(m *Memory) bool {
	if q.Type != "" && m.Type != q.Type {
		return false
	}
	if q.Category != "" && m.Category != q.Category {
		return false
	}
	if len(q.Tags) > 0 {
		hit := false
		for _, tag := range q.Tags {
			if m.HasTag(tag) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// ============================================================================
// MemoryStats - 记忆统计
// ============================================================================

// MemoryStats 单个角色的记忆统计信息
type MemoryStats struct {
	// RoleID 角色 ID
	RoleID string `json:"role_id"`

	// TotalCount 记忆总数（不含已过期）
	TotalCount int `json:"total_count"`

	// CountByType 按类型统计
	CountByType map[MemoryType]int `json:"count_by_type"`

	// CountByImportance 按重要性统计
	CountByImportance map[Importance]int `json:"count_by_importance"`

	// ExpiredCount 已过期但尚未清理的条数
	ExpiredCount int `json:"expired_count"`
}
