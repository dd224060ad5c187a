// Package repository 触发模式相关的存储操作
package repository

import (
	"context"
	"time"

	"advisors-admin/internal/shared/model"
)

const triggerColumns = `id, role_id, pattern, priority, description, is_regex, enabled, source, created_at`

// SaveTrigger 保存触发模式，已存在时整行覆盖
func (s *Store) SaveTrigger(ctx context.Context, p *model.TriggerPattern) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := s.rebind(`
		INSERT INTO trigger_patterns (id, role_id, pattern, priority, description, is_regex, enabled, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		` + s.upsertByID([]string{
		"pattern = EXCLUDED.pattern",
		"priority = EXCLUDED.priority",
		"description = EXCLUDED.description",
		"is_regex = EXCLUDED.is_regex",
		"enabled = EXCLUDED.enabled",
	}))
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.RoleID, p.Pattern, p.Priority, p.Description,
		p.IsRegex, p.Enabled, p.Source, createdAt)
	return err
}

// ListTriggers 列出全部触发模式
func (s *Store) ListTriggers(ctx context.Context) ([]*model.TriggerPattern, error) {
	query := s.rebind(`SELECT ` + triggerColumns + ` FROM trigger_patterns ORDER BY role_id, created_at, id`)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []*model.TriggerPattern
	for rows.Next() {
		p := &model.TriggerPattern{}
		if err := rows.Scan(&p.ID, &p.RoleID, &p.Pattern, &p.Priority, &p.Description,
			&p.IsRegex, &p.Enabled, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		triggers = append(triggers, p)
	}
	return triggers, rows.Err()
}

// DeleteTrigger 删除单条触发模式
func (s *Store) DeleteTrigger(ctx context.Context, triggerID string) error {
	query := s.rebind(`DELETE FROM trigger_patterns WHERE id = $1`)
	_, err := s.db.ExecContext(ctx, query, triggerID)
	return err
}

// DeleteTriggersByRole 删除角色的全部触发模式
func (s *Store) DeleteTriggersByRole(ctx context.Context, roleID string) error {
	query := s.rebind(`DELETE FROM trigger_patterns WHERE role_id = $1`)
	_, err := s.db.ExecContext(ctx, query, roleID)
	return err
}
