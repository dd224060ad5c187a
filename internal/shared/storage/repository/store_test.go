// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"testing"
	"time"

	"advisors-admin/internal/shared/model"
	"advisors-admin/internal/shared/storage"
	"advisors-admin/internal/shared/storage/dbutil"
	sqlitedriver "advisors-admin/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Equal(t, "datetime('now')", d.CurrentTimestamp())
	assert.Equal(t, "1", d.BooleanLiteral(true))
	assert.Equal(t, "0", d.BooleanLiteral(false))
	assert.False(t, d.SupportsNullsLast())
	assert.True(t, d.SupportsRecursiveCTE())
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		d.Rebind("SELECT * FROM t WHERE id = $1 AND name = $2"))
	// 应去除 PG 类型转换
	assert.Equal(t, "UPDATE t SET status = ? WHERE id = ?",
		d.Rebind("UPDATE t SET status = $1::varchar WHERE id = $2"))
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

// ============================================================================
// Role 测试
// ============================================================================

func TestRoleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{
		ID:                "legal-advisor",
		Name:              "Legal Advisor",
		Description:       "Contract and compliance counsel",
		Instructions:      "Always flag jurisdiction-specific caveats.",
		Domains:           []string{"legal", "compliance"},
		Tone:              "analytical",
		SystemPrompt:      "You are a legal advisor.",
		ParentRoleID:      "ceo-advisor",
		InheritMemories:   true,
		MemoryAccessLevel: model.AccessElevated,
		MemoryCategories:  []string{"contracts"},
	}

	// Save
	require.NoError(t, s.SaveRole(ctx, role))

	// Get
	got, err := s.GetRole(ctx, "legal-advisor")
	require.NoError(t, err)
	assert.Equal(t, role.Name, got.Name)
	assert.Equal(t, []string{"legal", "compliance"}, got.Domains)
	assert.Equal(t, "ceo-advisor", got.ParentRoleID)
	assert.True(t, got.InheritMemories)
	assert.Equal(t, model.AccessElevated, got.MemoryAccessLevel)
	assert.Equal(t, []string{"contracts"}, got.MemoryCategories)

	// Save 同 ID 应整行覆盖
	role.Name = "Corporate Counsel"
	role.Domains = []string{"legal", "compliance", "privacy"}
	role.InheritMemories = false
	require.NoError(t, s.SaveRole(ctx, role))

	got, err = s.GetRole(ctx, "legal-advisor")
	require.NoError(t, err)
	assert.Equal(t, "Corporate Counsel", got.Name)
	assert.Len(t, got.Domains, 3)
	assert.False(t, got.InheritMemories)

	// List（ID 升序）
	second := &model.Role{ID: "data-advisor", Name: "Data Advisor", Tone: "technical", MemoryAccessLevel: model.AccessStandard}
	require.NoError(t, s.SaveRole(ctx, second))

	roles, err := s.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "data-advisor", roles[0].ID)
	assert.Equal(t, "legal-advisor", roles[1].ID)

	// Delete
	require.NoError(t, s.DeleteRole(ctx, "legal-advisor"))
	_, err = s.GetRole(ctx, "legal-advisor")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Get 不存在
	_, err = s.GetRole(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ============================================================================
// Trigger 测试
// ============================================================================

func TestTriggerCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	p := &model.TriggerPattern{
		ID:          "trig-aaa111",
		RoleID:      "legal-advisor",
		Pattern:     `\b(?:contract|lawsuit|liability)\b`,
		Priority:    3,
		Description: "legal vocabulary",
		IsRegex:     true,
		Enabled:     true,
		Source:      model.TriggerSourceCustom,
		CreatedAt:   now,
	}
	require.NoError(t, s.SaveTrigger(ctx, p))

	triggers, err := s.ListTriggers(ctx)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, p.Pattern, triggers[0].Pattern)
	assert.True(t, triggers[0].IsRegex)
	assert.True(t, triggers[0].Enabled)
	assert.Equal(t, model.TriggerSourceCustom, triggers[0].Source)

	// 禁用状态通过 upsert 覆盖
	p.Enabled = false
	require.NoError(t, s.SaveTrigger(ctx, p))
	triggers, err = s.ListTriggers(ctx)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.False(t, triggers[0].Enabled)

	// 同角色第二条，排序按 role_id, created_at
	p2 := &model.TriggerPattern{
		ID:        "trig-bbb222",
		RoleID:    "legal-advisor",
		Pattern:   "gdpr",
		Priority:  4,
		Source:    model.TriggerSourceCustom,
		Enabled:   true,
		CreatedAt: now.Add(time.Second),
	}
	require.NoError(t, s.SaveTrigger(ctx, p2))

	triggers, err = s.ListTriggers(ctx)
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, "trig-aaa111", triggers[0].ID)
	assert.Equal(t, "trig-bbb222", triggers[1].ID)

	// 删除单条
	require.NoError(t, s.DeleteTrigger(ctx, "trig-aaa111"))
	triggers, _ = s.ListTriggers(ctx)
	assert.Len(t, triggers, 1)

	// 按角色删除
	require.NoError(t, s.DeleteTriggersByRole(ctx, "legal-advisor"))
	triggers, _ = s.ListTriggers(ctx)
	assert.Len(t, triggers, 0)
}

// ============================================================================
// Memory 测试
// ============================================================================

func TestMemoryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	expires := now.Add(time.Hour)

	m := &model.Memory{
		ID:         "mem-aaa111",
		RoleID:     "cfo-advisor",
		Content:    "User asked: What is our runway?\nAssistant responded: About 14 months.",
		Type:       model.MemoryTypeSession,
		Importance: model.ImportanceMedium,
		Embedding:  []float32{0.1, 0.2, 0.3},
		Tags:       []string{"finance", "runway"},
		Category:   "finance",
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}
	require.NoError(t, s.SaveMemory(ctx, m))

	// Get
	got, err := s.GetMemory(ctx, "mem-aaa111")
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, model.MemoryTypeSession, got.Type)
	assert.Equal(t, model.ImportanceMedium, got.Importance)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
	assert.Equal(t, []string{"finance", "runway"}, got.Tags)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expires, *got.ExpiresAt, time.Second)

	// 共享列表追加通过 upsert 覆盖
	m.SharedWith = []string{"ceo-advisor"}
	require.NoError(t, s.SaveMemory(ctx, m))
	got, err = s.GetMemory(ctx, "mem-aaa111")
	require.NoError(t, err)
	assert.Equal(t, []string{"ceo-advisor"}, got.SharedWith)

	// knowledge 记忆可无过期时间、无向量
	m2 := &model.Memory{
		ID:         "mem-bbb222",
		RoleID:     "cfo-advisor",
		Content:    "Quarterly reports are due the 15th.",
		Type:       model.MemoryTypeKnowledge,
		Importance: model.ImportanceHigh,
		CreatedAt:  now.Add(time.Second),
	}
	require.NoError(t, s.SaveMemory(ctx, m2))

	got, err = s.GetMemory(ctx, "mem-bbb222")
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.Empty(t, got.Embedding)

	// List（创建时间降序）
	memories, err := s.ListMemories(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, "mem-bbb222", memories[0].ID)

	// 其他角色的记忆不出现在 ListMemoriesByRole
	m3 := &model.Memory{ID: "mem-ccc333", RoleID: "ceo-advisor", Content: "x", Type: model.MemoryTypeUser, Importance: model.ImportanceLow, CreatedAt: now}
	require.NoError(t, s.SaveMemory(ctx, m3))

	memories, err = s.ListMemoriesByRole(ctx, "cfo-advisor")
	require.NoError(t, err)
	assert.Len(t, memories, 2)

	// Delete
	require.NoError(t, s.DeleteMemory(ctx, "mem-aaa111"))
	_, err = s.GetMemory(ctx, "mem-aaa111")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 按角色删除
	require.NoError(t, s.DeleteMemoriesByRole(ctx, "cfo-advisor"))
	memories, _ = s.ListMemories(ctx)
	require.Len(t, memories, 1)
	assert.Equal(t, "mem-ccc333", memories[0].ID)
}

func TestDeleteExpiredMemories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	save := func(id string, expiresAt *time.Time) {
		require.NoError(t, s.SaveMemory(ctx, &model.Memory{
			ID: id, RoleID: "cfo-advisor", Content: "c",
			Type: model.MemoryTypeSession, Importance: model.ImportanceMedium,
			CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: expiresAt,
		}))
	}
	save("mem-expired", &past)
	save("mem-live", &future)
	save("mem-forever", nil)

	deleted, err := s.DeleteExpiredMemories(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	memories, err := s.ListMemories(ctx)
	require.NoError(t, err)
	assert.Len(t, memories, 2)

	// 再次清理无行可删
	deleted, err = s.DeleteExpiredMemories(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
