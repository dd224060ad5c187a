// Package engine 记忆存储
//
// memstore.go 实现按角色分片的内存记忆存储：
//   - 每个角色一个分片，分片内用独立互斥锁，跨角色写入互不阻塞
//   - 写入时按类型套用 TTL；过期记忆在所有读路径被惰性排除
//   - Share 幂等追加，部分目标非法时返回失败列表、合法目标照常生效
//   - Sweep 物理删除过期条目，由维护循环周期调用
//
// 持久化由仓储层（repository）write-through 完成，分片存储是运行时
// 的权威数据源。
package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"advisors-admin/internal/shared/model"
)

// MemoryTTL 各记忆类型的存活时长（零值表示永不过期）
type MemoryTTL struct {
	Session   time.Duration
	User      time.Duration
	Knowledge time.Duration
}

// ForType 返回指定类型的 TTL
func (t MemoryTTL) ForType(typ model.MemoryType) time.Duration {
	switch typ {
	case model.MemoryTypeSession:
		return t.Session
	case model.MemoryTypeUser:
		return t.User
	default:
		return t.Knowledge
	}
}

// roleShard 单个角色的记忆分片
type roleShard struct {
	mu sync.RWMutex

	// memories 记忆 ID → 记忆条目
	memories map[string]*model.Memory
}

// MemoryStore 按角色分片的记忆存储
type MemoryStore struct {
	graph *RoleGraph
	ttl   MemoryTTL

	mu sync.RWMutex

	// shards 角色 ID → 分片
	shards map[string]*roleShard

	// index 记忆 ID → 所属角色 ID，用于按 ID 直查
	index map[string]string
}

// NewMemoryStore 创建记忆存储
func NewMemoryStore(graph *RoleGraph, ttl MemoryTTL) *MemoryStore {
	return &MemoryStore{
		graph:  graph,
		ttl:    ttl,
		shards: make(map[string]*roleShard),
		index:  make(map[string]string),
	}
}

// shardFor 获取角色分片，不存在则创建
func (s *MemoryStore) shardFor(roleID string) *roleShard {
	s.mu.Lock()
	defer s.mu.Unlock()

	shard, ok := s.shards[roleID]
	if !ok {
		shard = &roleShard{memories: make(map[string]*model.Memory)}
		s.shards[roleID] = shard
	}
	return shard
}

// Store 写入一条记忆
//
// 角色不存在返回 ErrUnknownRole；类型非法返回校验错误。
// ID 为空时自动生成；Importance 为空时默认 medium；
// ExpiresAt 未指定时按类型 TTL 计算（knowledge 默认永不过期）。
func (s *MemoryStore) Store(m *model.Memory) error {
	if !s.graph.HasRole(m.RoleID) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, m.RoleID)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("invalid memory type: %q", m.Type)
	}
	if m.Importance == "" {
		m.Importance = model.ImportanceMedium
	}
	if !m.Importance.Valid() {
		return fmt.Errorf("invalid importance: %q", m.Importance)
	}
	if m.ID == "" {
		m.ID = memoryID()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ExpiresAt == nil {
		if ttl := s.ttl.ForType(m.Type); ttl > 0 {
			expires := m.CreatedAt.Add(ttl)
			m.ExpiresAt = &expires
		}
	}

	shard := s.shardFor(m.RoleID)
	shard.mu.Lock()
	cp := *m
	shard.memories[m.ID] = &cp
	shard.mu.Unlock()

	s.mu.Lock()
	s.index[m.ID] = m.RoleID
	s.mu.Unlock()
	return nil
}

// Get 按 ID 获取记忆（过期视作不存在）
func (s *MemoryStore) Get(memoryID string) (*model.Memory, error) {
	s.mu.RLock()
	roleID, ok := s.index[memoryID]
	shard := s.shards[roleID]
	s.mu.RUnlock()
	if !ok || shard == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}

	shard.mu.RLock()
	defer shard.mu.RUnlock()
	m, ok := shard.memories[memoryID]
	if !ok || m.IsExpired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}
	cp := *m
	return &cp, nil
}

// List 列出角色可见的记忆
//
// 自有记忆总是包含；query.IncludeShared / IncludeInherited 控制
// 共享和继承记忆是否纳入。结果按创建时间降序、同时间按 ID 升序。
func (s *MemoryStore) List(roleID string, query model.MemoryQuery) ([]*model.Memory, error) {
	if !s.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	out := s.Visible(roleID, query)
	return out, nil
}

// Visible 返回角色在过滤条件下可见的记忆快照（检索路径共用）
//
// 过期记忆被排除；继承/共享可见性由 RoleGraph.CanRead 判定。
func (s *MemoryStore) Visible(roleID string, query model.MemoryQuery) []*model.Memory {
	now := time.Now()

	s.mu.RLock()
	shardIDs := make([]string, 0, len(s.shards))
	for id := range s.shards {
		shardIDs = append(shardIDs, id)
	}
	s.mu.RUnlock()

	var out []*model.Memory
	for _, shardRole := range shardIDs {
		if shardRole != roleID && !query.IncludeShared && !query.IncludeInherited {
			continue
		}

		s.mu.RLock()
		shard := s.shards[shardRole]
		s.mu.RUnlock()
		if shard == nil {
			continue
		}

		shard.mu.RLock()
		for _, m := range shard.memories {
			if m.IsExpired(now) || !query.Match(m) {
				continue
			}
			switch {
			case m.RoleID == roleID:
				// 自有记忆
			case m.IsSharedWith(roleID):
				if !query.IncludeShared {
					continue
				}
			default:
				if !query.IncludeInherited || !s.graph.CanRead(roleID, m) {
					continue
				}
			}
			cp := *m
			out = append(out, &cp)
		}
		shard.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Share 将记忆共享给目标角色
//
// 幂等：已共享的目标不重复追加。目标角色不存在时记入失败列表，
// 其余合法目标照常生效；全部失败时返回错误。
func (s *MemoryStore) Share(memoryID string, targets []string) ([]string, error) {
	s.mu.RLock()
	roleID, ok := s.index[memoryID]
	shard := s.shards[roleID]
	s.mu.RUnlock()
	if !ok || shard == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}

	var failed []string
	valid := make([]string, 0, len(targets))
	for _, target := range targets {
		if target == roleID || !s.graph.HasRole(target) {
			failed = append(failed, target)
			continue
		}
		valid = append(valid, target)
	}

	shard.mu.Lock()
	m, ok := shard.memories[memoryID]
	if !ok || m.IsExpired(time.Now()) {
		shard.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}
	for _, target := range valid {
		if !m.IsSharedWith(target) {
			m.SharedWith = append(m.SharedWith, target)
		}
	}
	shard.mu.Unlock()

	if len(valid) == 0 && len(failed) > 0 {
		return failed, fmt.Errorf("%w: no valid share target", ErrUnknownRole)
	}
	return failed, nil
}

// Delete 删除一条记忆
func (s *MemoryStore) Delete(memoryID string) error {
	s.mu.Lock()
	roleID, ok := s.index[memoryID]
	shard := s.shards[roleID]
	delete(s.index, memoryID)
	s.mu.Unlock()
	if !ok || shard == nil {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}

	shard.mu.Lock()
	delete(shard.memories, memoryID)
	shard.mu.Unlock()
	return nil
}

// ClearForRole 清空角色的全部记忆
//
// 同时从其他角色记忆的 SharedWith 中移除该角色的引用，
// 返回删除的条数。
func (s *MemoryStore) ClearForRole(roleID string) int {
	s.mu.Lock()
	delete(s.shards, roleID)
	var removed int
	for id, owner := range s.index {
		if owner == roleID {
			delete(s.index, id)
			removed++
		}
	}
	others := make([]*roleShard, 0, len(s.shards))
	for _, sh := range s.shards {
		others = append(others, sh)
	}
	s.mu.Unlock()

	// 清理其他角色记忆上的共享引用
	for _, sh := range others {
		sh.mu.Lock()
		for _, m := range sh.memories {
			for i, target := range m.SharedWith {
				if target == roleID {
					m.SharedWith = append(m.SharedWith[:i], m.SharedWith[i+1:]...)
					break
				}
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Sweep 物理删除已过期的记忆，返回清理条数
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.RLock()
	shards := make([]*roleShard, 0, len(s.shards))
	for _, sh := range s.shards {
		shards = append(shards, sh)
	}
	s.mu.RUnlock()

	var swept int
	var expired []string
	for _, sh := range shards {
		sh.mu.Lock()
		for id, m := range sh.memories {
			if m.IsExpired(now) {
				delete(sh.memories, id)
				expired = append(expired, id)
				swept++
			}
		}
		sh.mu.Unlock()
	}

	if len(expired) > 0 {
		s.mu.Lock()
		for _, id := range expired {
			delete(s.index, id)
		}
		s.mu.Unlock()
	}
	return swept
}

// Stats 返回角色的记忆统计
func (s *MemoryStore) Stats(roleID string) (*model.MemoryStats, error) {
	if !s.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}

	stats := &model.MemoryStats{
		RoleID:            roleID,
		CountByType:       make(map[model.MemoryType]int),
		CountByImportance: make(map[model.Importance]int),
	}

	s.mu.RLock()
	shard := s.shards[roleID]
	s.mu.RUnlock()
	if shard == nil {
		return stats, nil
	}

	now := time.Now()
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	for _, m := range shard.memories {
		if m.IsExpired(now) {
			stats.ExpiredCount++
			continue
		}
		stats.TotalCount++
		stats.CountByType[m.Type]++
		stats.CountByImportance[m.Importance]++
	}
	return stats, nil
}

// memoryID 生成记忆 ID
func memoryID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "mem-" + hex.EncodeToString(b)
}
