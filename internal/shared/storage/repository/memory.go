// Package repository 记忆相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"advisors-admin/internal/shared/model"
	"advisors-admin/internal/shared/storage"
)

const memoryColumns = `id, role_id, content, type, importance, embedding, tags, category, shared_with, parent_memory_id, created_at, expires_at`

// SaveMemory 保存记忆，已存在时整行覆盖（共享列表追加时复用）
func (s *Store) SaveMemory(ctx context.Context, m *model.Memory) error {
	var embeddingJSON []byte
	if len(m.Embedding) > 0 {
		embeddingJSON, _ = json.Marshal(m.Embedding)
	}
	tagsJSON, _ := json.Marshal(m.Tags)
	sharedJSON, _ := json.Marshal(m.SharedWith)

	query := s.rebind(`
		INSERT INTO memories (id, role_id, content, type, importance, embedding, tags, category, shared_with, parent_memory_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		` + s.upsertByID([]string{
		"content = EXCLUDED.content",
		"importance = EXCLUDED.importance",
		"embedding = EXCLUDED.embedding",
		"tags = EXCLUDED.tags",
		"category = EXCLUDED.category",
		"shared_with = EXCLUDED.shared_with",
		"expires_at = EXCLUDED.expires_at",
	}))
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.RoleID, m.Content, string(m.Type), string(m.Importance),
		embeddingJSON, tagsJSON, m.Category, sharedJSON, m.ParentMemoryID,
		m.CreatedAt, m.ExpiresAt)
	return err
}

// GetMemory 获取记忆
func (s *Store) GetMemory(ctx context.Context, memoryID string) (*model.Memory, error) {
	query := s.rebind(`SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`)
	m, err := scanMemory(s.db.QueryRowContext(ctx, query, memoryID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMemories 列出全部记忆
func (s *Store) ListMemories(ctx context.Context) ([]*model.Memory, error) {
	query := s.rebind(`SELECT ` + memoryColumns + ` FROM memories ORDER BY created_at DESC, id`)
	return s.queryMemories(ctx, query)
}

// ListMemoriesByRole 列出角色拥有的记忆
func (s *Store) ListMemoriesByRole(ctx context.Context, roleID string) ([]*model.Memory, error) {
	query := s.rebind(`SELECT ` + memoryColumns + ` FROM memories WHERE role_id = $1 ORDER BY created_at DESC, id`)
	return s.queryMemories(ctx, query, roleID)
}

// DeleteMemory 删除单条记忆
func (s *Store) DeleteMemory(ctx context.Context, memoryID string) error {
	query := s.rebind(`DELETE FROM memories WHERE id = $1`)
	_, err := s.db.ExecContext(ctx, query, memoryID)
	return err
}

// DeleteMemoriesByRole 删除角色拥有的全部记忆
func (s *Store) DeleteMemoriesByRole(ctx context.Context, roleID string) error {
	query := s.rebind(`DELETE FROM memories WHERE role_id = $1`)
	_, err := s.db.ExecContext(ctx, query, roleID)
	return err
}

// DeleteExpiredMemories 物理删除 before 时刻前过期的记忆
func (s *Store) DeleteExpiredMemories(ctx context.Context, before time.Time) (int64, error) {
	query := s.rebind(`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at < $1`)
	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryMemories 执行查询并扫描多行记忆
func (s *Store) queryMemories(ctx context.Context, query string, args ...interface{}) ([]*model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// scanMemory 从数据库行扫描 Memory
func scanMemory(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Memory, error) {
	m := &model.Memory{}
	var memType, importance string
	var embeddingJSON, tagsJSON, sharedJSON []byte
	err := scanner.Scan(
		&m.ID, &m.RoleID, &m.Content, &memType, &importance,
		&embeddingJSON, &tagsJSON, &m.Category, &sharedJSON, &m.ParentMemoryID,
		&m.CreatedAt, &m.ExpiresAt)
	if err != nil {
		return nil, err
	}
	m.Type = model.MemoryType(memType)
	m.Importance = model.Importance(importance)
	if len(embeddingJSON) > 0 && string(embeddingJSON) != "null" {
		json.Unmarshal(embeddingJSON, &m.Embedding)
	}
	m.Tags = unmarshalStrings(tagsJSON)
	m.SharedWith = unmarshalStrings(sharedJSON)
	return m, nil
}
