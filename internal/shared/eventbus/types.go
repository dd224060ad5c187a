// Package eventbus 事件总线数据类型与键空间
package eventbus

import "time"

// ============================================================================
// 键空间
// ============================================================================

const (
	// KeySwitchEvents 切换事件流键前缀: events:switch:<session_id>
	KeySwitchEvents = "events:switch:"

	// MaxStreamLength 单个事件流的长度上限（近似裁剪）
	MaxStreamLength = 1000
)

// ============================================================================
// SwitchEvent - 切换事件（总线传输格式）
// ============================================================================

// SwitchEvent 角色切换事件
//
// ID 由 Redis Streams 分配，订阅方可据此断点续读。
type SwitchEvent struct {
	// ID 流内事件 ID（发布时为空）
	ID string `json:"id,omitempty"`

	// SessionID 所属会话
	SessionID string `json:"session_id"`

	// Timestamp 切换发生时间
	Timestamp time.Time `json:"timestamp"`

	// FromRoleID 切换前的角色
	FromRoleID string `json:"from_role_id"`

	// ToRoleID 切换后的角色
	ToRoleID string `json:"to_role_id"`

	// Reason 切换原因
	Reason string `json:"reason"`

	// Automatic 是否为触发器自动切换
	Automatic bool `json:"automatic"`
}
