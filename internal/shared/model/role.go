// Package model 定义核心数据模型
//
// role.go 包含角色相关的数据模型定义：
//   - Role：专家角色（领域、语气、记忆访问配置）
//   - AccessLevel：记忆访问级别枚举
//
// 角色是系统的路由目标：查询经触发器打分后被路由到得分最高的角色，
// 角色的记忆访问配置决定它能读到哪些继承记忆。
package model

import "slices"

// ============================================================================
// AccessLevel - 记忆访问级别
// ============================================================================

// AccessLevel 记忆访问级别
//
// 决定角色通过继承链能读到父角色的哪些记忆类型：
//   - standard：仅 knowledge
//   - elevated：knowledge + user
//   - admin：全部类型（含 session）
type AccessLevel string

const (
	AccessStandard AccessLevel = "standard"
	AccessElevated AccessLevel = "elevated"
	AccessAdmin    AccessLevel = "admin"
)

// Valid 判断是否为合法的访问级别
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessStandard, AccessElevated, AccessAdmin:
		return true
	}
	return false
}

// AllowsType 判断该访问级别是否允许读取指定类型的继承记忆
func (l AccessLevel) AllowsType(t MemoryType) bool {
	switch l {
	case AccessAdmin:
		return true
	case AccessElevated:
		return t == MemoryTypeKnowledge || t == MemoryTypeUser
	default: // standard 及未知值按最低权限处理
		return t == MemoryTypeKnowledge
	}
}

// ============================================================================
// Role - 专家角色
// ============================================================================

// Role 专家角色
//
// 角色记录由外部角色管理方创建和维护，引擎只读取角色数据，
// 并代其维护 Role Graph 的父子边（SetParent）。
//
// 不变式：父链（ParentRoleID 链）必须无环，在设置父角色时校验。
type Role struct {
	// ID 唯一标识（创建后不可变）
	ID string `json:"id" db:"id"`

	// Name 展示名称
	Name string `json:"name" db:"name"`

	// Description 角色定位描述
	Description string `json:"description" db:"description"`

	// Instructions 角色专属指令
	Instructions string `json:"instructions" db:"instructions"`

	// Domains 专长领域（用于自动派生触发模式）
	Domains []string `json:"domains" db:"domains"`

	// Tone 沟通语气（strategic、analytical 等，见 assembler 的语气档案表）
	Tone string `json:"tone" db:"tone"`

	// SystemPrompt 基础系统提示词
	SystemPrompt string `json:"system_prompt" db:"system_prompt"`

	// IsDefault 是否为内置角色（内置角色禁止修改和删除）
	IsDefault bool `json:"is_default" db:"is_default"`

	// ParentRoleID 父角色 ID（可选，用于记忆继承）
	ParentRoleID string `json:"parent_role_id,omitempty" db:"parent_role_id"`

	// InheritMemories 是否从父角色继承记忆
	InheritMemories bool `json:"inherit_memories" db:"inherit_memories"`

	// MemoryAccessLevel 继承记忆的访问级别
	MemoryAccessLevel AccessLevel `json:"memory_access_level" db:"memory_access_level"`

	// MemoryCategories 角色关注的记忆分类；非空时继承记忆按分类过滤
	MemoryCategories []string `json:"memory_categories,omitempty" db:"memory_categories"`
}

// AllowsCategory 判断角色是否可读取指定分类的继承记忆
//
// MemoryCategories 为空表示不限制；记忆无分类时总是允许。
func (r *Role) AllowsCategory(category string) bool {
	if len(r.MemoryCategories) == 0 || category == "" {
		return true
	}
	return slices.Contains(r.MemoryCategories, category)
}

// RoleUpdate 角色更新请求（nil 字段表示不修改）
type RoleUpdate struct {
	Name              *string      `json:"name,omitempty"`
	Description       *string      `json:"description,omitempty"`
	Instructions      *string      `json:"instructions,omitempty"`
	Domains           []string     `json:"domains,omitempty"`
	Tone              *string      `json:"tone,omitempty"`
	SystemPrompt      *string      `json:"system_prompt,omitempty"`
	ParentRoleID      *string      `json:"parent_role_id,omitempty"`
	InheritMemories   *bool        `json:"inherit_memories,omitempty"`
	MemoryAccessLevel *AccessLevel `json:"memory_access_level,omitempty"`
	MemoryCategories  []string     `json:"memory_categories,omitempty"`
}
