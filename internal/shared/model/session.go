// Package model 定义核心数据模型
//
// session.go 包含会话路由相关的数据模型定义：
//   - Session：一次对话的路由状态
//   - SwitchEvent：角色切换事件（追加写）
package model

import "time"

// ============================================================================
// SwitchEvent - 角色切换事件
// ============================================================================

// SwitchEvent 角色切换事件
//
// 每次切换（自动或手动）都会向会话历史追加一条事件，追加后不再修改。
type SwitchEvent struct {
	// Timestamp 切换发生时间
	Timestamp time.Time `json:"timestamp"`

	// FromRoleID 切换前的角色
	FromRoleID string `json:"from_role_id"`

	// ToRoleID 切换后的角色
	ToRoleID string `json:"to_role_id"`

	// Reason 可读的切换原因（含触发描述和得分对比，或 "manual"）
	Reason string `json:"reason"`

	// Query 触发切换的查询片段（手动切换时为空）
	Query string `json:"query,omitempty"`

	// Automatic 是否为触发器自动切换
	Automatic bool `json:"automatic"`
}

// ============================================================================
// Session - 会话路由状态
// ============================================================================

// Session 一次对话的路由状态
//
// 由 Session Router 独占持有：单个会话的修改被串行化，
// 不同会话之间互不影响。
type Session struct {
	// SessionID 会话唯一标识
	SessionID string `json:"session_id"`

	// CurrentRoleID 当前激活角色
	CurrentRoleID string `json:"current_role_id"`

	// CreatedAt 会话创建时间
	CreatedAt time.Time `json:"created_at"`

	// LastActivity 最近一次请求时间
	LastActivity time.Time `json:"last_activity"`

	// LastSwitchReason 最近一次切换原因
	LastSwitchReason string `json:"last_switch_reason,omitempty"`

	// History 切换事件历史（按发生顺序追加）
	History []SwitchEvent `json:"history"`
}

// Clone 返回会话的深拷贝（History 独立），用于对外暴露快照
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = make([]SwitchEvent, len(s.History))
	copy(cp.History, s.History)
	return &cp
}
