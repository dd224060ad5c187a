// Package repository 角色相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"advisors-admin/internal/shared/model"
	"advisors-admin/internal/shared/storage"
)

// roleColumns 读取角色时的列顺序，与 scanRole 对应
const roleColumns = `id, name, description, instructions, domains, tone, system_prompt, is_default, parent_role_id, inherit_memories, memory_access_level, memory_categories`

// SaveRole 保存角色，已存在时整行覆盖
func (s *Store) SaveRole(ctx context.Context, role *model.Role) error {
	domainsJSON, _ := json.Marshal(role.Domains)
	categoriesJSON, _ := json.Marshal(role.MemoryCategories)

	query := s.rebind(`
		INSERT INTO roles (id, name, description, instructions, domains, tone, system_prompt, is_default, parent_role_id, inherit_memories, memory_access_level, memory_categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		` + s.upsertByID([]string{
		"name = EXCLUDED.name",
		"description = EXCLUDED.description",
		"instructions = EXCLUDED.instructions",
		"domains = EXCLUDED.domains",
		"tone = EXCLUDED.tone",
		"system_prompt = EXCLUDED.system_prompt",
		"is_default = EXCLUDED.is_default",
		"parent_role_id = EXCLUDED.parent_role_id",
		"inherit_memories = EXCLUDED.inherit_memories",
		"memory_access_level = EXCLUDED.memory_access_level",
		"memory_categories = EXCLUDED.memory_categories",
		"updated_at = " + s.now(),
	}))
	_, err := s.db.ExecContext(ctx, query,
		role.ID, role.Name, role.Description, role.Instructions, domainsJSON,
		role.Tone, role.SystemPrompt, role.IsDefault, role.ParentRoleID,
		role.InheritMemories, string(role.MemoryAccessLevel), categoriesJSON)
	return err
}

// GetRole 获取角色
func (s *Store) GetRole(ctx context.Context, roleID string) (*model.Role, error) {
	query := s.rebind(`SELECT ` + roleColumns + ` FROM roles WHERE id = $1`)
	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles 列出全部角色
func (s *Store) ListRoles(ctx context.Context) ([]*model.Role, error) {
	query := s.rebind(`SELECT ` + roleColumns + ` FROM roles ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// DeleteRole 删除角色
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	query := s.rebind(`DELETE FROM roles WHERE id = $1`)
	_, err := s.db.ExecContext(ctx, query, roleID)
	return err
}

// scanRole 从数据库行扫描 Role
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Role, error) {
	role := &model.Role{}
	var domainsJSON, categoriesJSON []byte
	var accessLevel string
	err := scanner.Scan(
		&role.ID, &role.Name, &role.Description, &role.Instructions, &domainsJSON,
		&role.Tone, &role.SystemPrompt, &role.IsDefault, &role.ParentRoleID,
		&role.InheritMemories, &accessLevel, &categoriesJSON)
	if err != nil {
		return nil, err
	}
	role.MemoryAccessLevel = model.AccessLevel(accessLevel)
	role.Domains = unmarshalStrings(domainsJSON)
	role.MemoryCategories = unmarshalStrings(categoriesJSON)
	return role, nil
}
