// Package engine 角色图
//
// rolegraph.go 维护角色表和记忆继承图：
//   - 角色 CRUD（内置角色禁止修改和删除）
//   - 父角色设置，写入前做有界深度环检测，失败不留任何修改
//   - 继承链解析（自身除外、就近优先）
//   - 记忆可读性判定（属主 → 显式共享 → 继承链）
package engine

import (
	"fmt"
	"sort"
	"sync"

	"advisors-admin/internal/shared/model"
)

// RoleGraph 角色表 + 继承图
type RoleGraph struct {
	mu sync.RWMutex

	// roles 角色 ID → 角色记录
	roles map[string]*model.Role

	// maxDepth 继承链深度上限，超过按环处理
	maxDepth int
}

// NewRoleGraph 创建空角色图
func NewRoleGraph(maxDepth int) *RoleGraph {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &RoleGraph{
		roles:    make(map[string]*model.Role),
		maxDepth: maxDepth,
	}
}

// AddRole 添加角色
//
// ID 重复返回 ErrRoleExists；ParentRoleID 非空时校验父角色存在且不成环。
func (g *RoleGraph) AddRole(role *model.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.roles[role.ID]; ok {
		return fmt.Errorf("%w: %s", ErrRoleExists, role.ID)
	}
	if role.ParentRoleID != "" {
		if err := g.checkParentLocked(role.ID, role.ParentRoleID); err != nil {
			return err
		}
	}
	cp := *role
	g.roles[role.ID] = &cp
	return nil
}

// GetRole 获取角色快照
func (g *RoleGraph) GetRole(roleID string) (*model.Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	role, ok := g.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	cp := *role
	return &cp, nil
}

// ListRoles 返回全部角色快照，按 ID 升序
func (g *RoleGraph) ListRoles() []*model.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*model.Role, 0, len(g.roles))
	for _, role := range g.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateRole 按字段更新角色
//
// 内置角色返回 ErrDefaultRoleImmutable；修改父角色时做环检测，
// 任何校验失败都不会留下部分修改。
func (g *RoleGraph) UpdateRole(roleID string, update *model.RoleUpdate) (*model.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	role, ok := g.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	if role.IsDefault {
		return nil, fmt.Errorf("%w: %s", ErrDefaultRoleImmutable, roleID)
	}

	// 先在副本上应用修改，校验通过后整体替换
	next := *role
	if update.Name != nil {
		next.Name = *update.Name
	}
	if update.Description != nil {
		next.Description = *update.Description
	}
	if update.Instructions != nil {
		next.Instructions = *update.Instructions
	}
	if update.Domains != nil {
		next.Domains = update.Domains
	}
	if update.Tone != nil {
		next.Tone = *update.Tone
	}
	if update.SystemPrompt != nil {
		next.SystemPrompt = *update.SystemPrompt
	}
	if update.ParentRoleID != nil {
		next.ParentRoleID = *update.ParentRoleID
		if next.ParentRoleID != "" {
			if err := g.checkParentLocked(roleID, next.ParentRoleID); err != nil {
				return nil, err
			}
		}
	}
	if update.InheritMemories != nil {
		next.InheritMemories = *update.InheritMemories
	}
	if update.MemoryAccessLevel != nil {
		next.MemoryAccessLevel = *update.MemoryAccessLevel
	}
	if update.MemoryCategories != nil {
		next.MemoryCategories = update.MemoryCategories
	}

	g.roles[roleID] = &next
	cp := next
	return &cp, nil
}

// SetParent 设置父角色（parentID 为空表示解除）
func (g *RoleGraph) SetParent(roleID, parentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	role, ok := g.roles[roleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	if parentID != "" {
		if err := g.checkParentLocked(roleID, parentID); err != nil {
			return err
		}
	}
	role.ParentRoleID = parentID
	return nil
}

// DeleteRole 删除角色
//
// 内置角色返回 ErrDefaultRoleImmutable。
// 以该角色为父的角色会被解除父链（不级联删除）。
func (g *RoleGraph) DeleteRole(roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	role, ok := g.roles[roleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	if role.IsDefault {
		return fmt.Errorf("%w: %s", ErrDefaultRoleImmutable, roleID)
	}

	delete(g.roles, roleID)
	for _, other := range g.roles {
		if other.ParentRoleID == roleID {
			other.ParentRoleID = ""
		}
	}
	return nil
}

// checkParentLocked 校验父角色设置不成环
//
// 从候选父角色沿父链上溯，遇到 roleID 即成环；
// 深度超过 maxDepth 按环处理（防御图数据异常）。
// 调用方必须持有写锁。
func (g *RoleGraph) checkParentLocked(roleID, parentID string) error {
	if parentID == roleID {
		return fmt.Errorf("%w: %s -> %s", ErrCyclicInheritance, roleID, parentID)
	}
	if _, ok := g.roles[parentID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, parentID)
	}

	cur := parentID
	for depth := 0; cur != ""; depth++ {
		if depth >= g.maxDepth {
			return fmt.Errorf("%w: chain exceeds depth %d", ErrCyclicInheritance, g.maxDepth)
		}
		if cur == roleID {
			return fmt.Errorf("%w: %s -> %s", ErrCyclicInheritance, roleID, parentID)
		}
		parent, ok := g.roles[cur]
		if !ok {
			break
		}
		cur = parent.ParentRoleID
	}
	return nil
}

// InheritanceChain 返回角色的祖先链（不含自身），就近优先
//
// 链中某个角色关闭了 InheritMemories 时，链在该处截断
// （它以上的祖先对调用方不可见）。
func (g *RoleGraph) InheritanceChain(roleID string) ([]*model.Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	role, ok := g.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	if !role.InheritMemories {
		return nil, nil
	}

	var chain []*model.Role
	cur := role.ParentRoleID
	for depth := 0; cur != "" && depth < g.maxDepth; depth++ {
		parent, ok := g.roles[cur]
		if !ok {
			break
		}
		cp := *parent
		chain = append(chain, &cp)
		if !parent.InheritMemories {
			break
		}
		cur = parent.ParentRoleID
	}
	return chain, nil
}

// CanRead 判定角色能否读取一条记忆
//
// 判定顺序：
//  1. 属主：自己的记忆总是可读
//  2. 显式共享：SharedWith 包含读者即可读
//  3. 继承：记忆属主在读者的继承链上，且读者的访问级别允许
//     该记忆类型、分类过滤放行
func (g *RoleGraph) CanRead(readerID string, m *model.Memory) bool {
	if m.RoleID == readerID {
		return true
	}
	if m.IsSharedWith(readerID) {
		return true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	reader, ok := g.roles[readerID]
	if !ok || !reader.InheritMemories {
		return false
	}
	if !reader.MemoryAccessLevel.AllowsType(m.Type) {
		return false
	}
	if !reader.AllowsCategory(m.Category) {
		return false
	}

	// 记忆属主必须在读者的祖先链上
	cur := reader.ParentRoleID
	for depth := 0; cur != "" && depth < g.maxDepth; depth++ {
		if cur == m.RoleID {
			return true
		}
		parent, ok := g.roles[cur]
		if !ok {
			return false
		}
		if !parent.InheritMemories {
			// 祖先关闭继承时链在此截断，更上层的记忆不可见
			return false
		}
		cur = parent.ParentRoleID
	}
	return false
}

// HasRole 判断角色是否存在
func (g *RoleGraph) HasRole(roleID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.roles[roleID]
	return ok
}
