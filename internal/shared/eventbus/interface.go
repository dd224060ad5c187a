// Package eventbus 事件总线抽象接口
//
// 提供角色切换事件的发布/订阅能力，当前由 Redis Streams 实现。
// WebSocket 网关通过订阅把切换事件实时推给前端。
package eventbus

import (
	"context"
)

// ============================================================================
// 事件总线接口定义
// ============================================================================

// SwitchEventBus 角色切换事件总线接口
type SwitchEventBus interface {
	PublishSwitchEvent(ctx context.Context, sessionID string, event *SwitchEvent) error
	GetSwitchEvents(ctx context.Context, sessionID string, fromID string, count int64) ([]*SwitchEvent, error)
	GetSwitchEventCount(ctx context.Context, sessionID string) (int64, error)
	SubscribeSwitchEvents(ctx context.Context, sessionID string) (<-chan *SwitchEvent, error)
	DeleteSwitchEvents(ctx context.Context, sessionID string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// EventBus 事件总线组合接口
type EventBus interface {
	SwitchEventBus
	Close() error
}
