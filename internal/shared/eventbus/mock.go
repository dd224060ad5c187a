// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（Redis 未配置时使用）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
//
// 切换事件仍通过引擎的进程内监听器送达本实例的 WebSocket 连接，
// 只是不再跨实例广播。
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Close 关闭事件总线
func (b *NoOpEventBus) Close() error {
	return nil
}

func (b *NoOpEventBus) PublishSwitchEvent(ctx context.Context, sessionID string, event *SwitchEvent) error {
	return nil
}

func (b *NoOpEventBus) GetSwitchEvents(ctx context.Context, sessionID string, fromID string, count int64) ([]*SwitchEvent, error) {
	return []*SwitchEvent{}, nil
}

func (b *NoOpEventBus) GetSwitchEventCount(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (b *NoOpEventBus) SubscribeSwitchEvents(ctx context.Context, sessionID string) (<-chan *SwitchEvent, error) {
	ch := make(chan *SwitchEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *NoOpEventBus) DeleteSwitchEvents(ctx context.Context, sessionID string) error {
	return nil
}

// 确保 NoOpEventBus 实现了 EventBus 接口
var _ EventBus = (*NoOpEventBus)(nil)
