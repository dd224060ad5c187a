// Package model 定义核心数据模型
//
// trigger.go 包含触发模式相关的数据模型定义：
//   - TriggerPattern：角色的触发模式（关键词或正则）
//   - 模式来源常量（domain/name/custom）
package model

import "time"

// ============================================================================
// 模式来源
// ============================================================================

const (
	// TriggerSourceDomain 从角色 Domains 自动派生
	TriggerSourceDomain = "domain"

	// TriggerSourceName 从角色名称派生
	TriggerSourceName = "name"

	// TriggerSourceCustom 管理员手工添加
	TriggerSourceCustom = "custom"
)

// 默认优先级档位：domain=1, name=2, custom>=3
const (
	PriorityDomain = 1
	PriorityName   = 2
	PriorityCustom = 3
)

// ============================================================================
// TriggerPattern - 触发模式
// ============================================================================

// TriggerPattern 角色的触发模式
//
// 打分时每条命中的启用模式向所属角色累加 Priority；
// 正则模式在注册时编译，编译失败立即拒绝，不会延迟到打分时。
type TriggerPattern struct {
	// ID 唯一标识
	ID string `json:"id" db:"id"`

	// RoleID 所属角色
	RoleID string `json:"role_id" db:"role_id"`

	// Pattern 字面关键词或正则表达式
	Pattern string `json:"pattern" db:"pattern"`

	// Priority 优先级权重（正整数，命中即累加）
	Priority int `json:"priority" db:"priority"`

	// Description 模式说明（用于切换原因展示）
	Description string `json:"description" db:"description"`

	// IsRegex Pattern 是否为正则表达式
	IsRegex bool `json:"is_regex" db:"is_regex"`

	// Enabled 是否启用（禁用的模式不参与打分）
	Enabled bool `json:"enabled" db:"enabled"`

	// Source 模式来源（domain/name/custom）
	Source string `json:"source" db:"source"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
