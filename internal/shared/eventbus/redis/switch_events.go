// Package redis 切换事件总线操作
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"advisors-admin/internal/shared/eventbus"
)

// PublishSwitchEvent 发布切换事件
func (s *Store) PublishSwitchEvent(ctx context.Context, sessionID string, event *eventbus.SwitchEvent) error {
	key := eventbus.KeySwitchEvents + sessionID

	args := &redis.XAddArgs{
		Stream: key,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"timestamp":    event.Timestamp.Format(time.RFC3339Nano),
			"from_role_id": event.FromRoleID,
			"to_role_id":   event.ToRoleID,
			"reason":       event.Reason,
			"automatic":    strconv.FormatBool(event.Automatic),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish switch event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published switch event: %s seq=%s %s->%s", sessionID, id, event.FromRoleID, event.ToRoleID)
	return nil
}

// GetSwitchEvents 获取会话的切换事件列表
func (s *Store) GetSwitchEvents(ctx context.Context, sessionID string, fromID string, count int64) ([]*eventbus.SwitchEvent, error) {
	key := eventbus.KeySwitchEvents + sessionID

	if fromID == "" {
		fromID = "0"
	}

	msgs, err := s.client.XRange(ctx, key, fromID, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get switch events: %w", err)
	}

	var events []*eventbus.SwitchEvent
	for _, msg := range msgs {
		events = append(events, decodeSwitchEvent(sessionID, msg))
		if count > 0 && int64(len(events)) >= count {
			break
		}
	}
	return events, nil
}

// GetSwitchEventCount 获取切换事件数量
func (s *Store) GetSwitchEventCount(ctx context.Context, sessionID string) (int64, error) {
	return s.client.XLen(ctx, eventbus.KeySwitchEvents+sessionID).Result()
}

// SubscribeSwitchEvents 订阅会话的切换事件
func (s *Store) SubscribeSwitchEvents(ctx context.Context, sessionID string) (<-chan *eventbus.SwitchEvent, error) {
	key := eventbus.KeySwitchEvents + sessionID
	ch := make(chan *eventbus.SwitchEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				log.Printf("[Redis/EventBus] Switch event subscription error: %v", err)
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					select {
					case ch <- decodeSwitchEvent(sessionID, msg):
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// DeleteSwitchEvents 删除会话的切换事件流
func (s *Store) DeleteSwitchEvents(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, eventbus.KeySwitchEvents+sessionID).Err()
}

// decodeSwitchEvent 从流消息还原切换事件
func decodeSwitchEvent(sessionID string, msg redis.XMessage) *eventbus.SwitchEvent {
	event := &eventbus.SwitchEvent{
		ID:        msg.ID,
		SessionID: sessionID,
	}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = t
		}
	}
	if v, ok := msg.Values["from_role_id"].(string); ok {
		event.FromRoleID = v
	}
	if v, ok := msg.Values["to_role_id"].(string); ok {
		event.ToRoleID = v
	}
	if v, ok := msg.Values["reason"].(string); ok {
		event.Reason = v
	}
	if v, ok := msg.Values["automatic"].(string); ok {
		event.Automatic = v == "true"
	}
	return event
}
