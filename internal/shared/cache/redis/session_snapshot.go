// Package redis 会话快照缓存操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"advisors-admin/internal/shared/cache"
	"advisors-admin/internal/shared/model"
)

// SetSessionSnapshot 写入会话快照
func (s *Store) SetSessionSnapshot(ctx context.Context, session *model.Session, ttl time.Duration) error {
	key := cache.KeySessionSnapshot + session.SessionID
	if ttl <= 0 {
		ttl = cache.DefaultSessionSnapshotTTL
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session snapshot: %w", err)
	}
	return nil
}

// GetSessionSnapshot 读取会话快照，未命中返回 (nil, nil)
func (s *Store) GetSessionSnapshot(ctx context.Context, sessionID string) (*model.Session, error) {
	data, err := s.client.Get(ctx, cache.KeySessionSnapshot+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session snapshot: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &session, nil
}

// DeleteSessionSnapshot 删除会话快照
func (s *Store) DeleteSessionSnapshot(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, cache.KeySessionSnapshot+sessionID).Err()
}
