package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisors-admin/internal/shared/model"
)

func newTestStore(t *testing.T, ttl MemoryTTL) (*RoleGraph, *MemoryStore) {
	t.Helper()
	g := NewRoleGraph(64)
	for _, id := range []string{"cfo-advisor", "ceo-advisor", "cmo-advisor"} {
		require.NoError(t, g.AddRole(&model.Role{ID: id, Name: id}))
	}
	return g, NewMemoryStore(g, ttl)
}

// TestMemoryStore_Store 验证写入时的 TTL 套用与默认值
func TestMemoryStore_Store(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{
		Session: time.Hour,
		User:    30 * 24 * time.Hour,
		// Knowledge 零值 = 永不过期
	})

	tests := []struct {
		name    string
		typ     model.MemoryType
		wantTTL time.Duration
		never   bool
	}{
		{"session 一小时", model.MemoryTypeSession, time.Hour, false},
		{"user 三十天", model.MemoryTypeUser, 30 * 24 * time.Hour, false},
		{"knowledge 永不过期", model.MemoryTypeKnowledge, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &model.Memory{RoleID: "cfo-advisor", Content: "note", Type: tt.typ}
			require.NoError(t, s.Store(m))
			assert.NotEmpty(t, m.ID)
			assert.Equal(t, model.ImportanceMedium, m.Importance)

			if tt.never {
				assert.Nil(t, m.ExpiresAt)
			} else {
				require.NotNil(t, m.ExpiresAt)
				assert.WithinDuration(t, m.CreatedAt.Add(tt.wantTTL), *m.ExpiresAt, time.Second)
			}
		})
	}
}

// TestMemoryStore_Store_Validation 验证写入校验
func TestMemoryStore_Store_Validation(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	err := s.Store(&model.Memory{RoleID: "ghost", Type: model.MemoryTypeSession})
	assert.ErrorIs(t, err, ErrUnknownRole)

	err = s.Store(&model.Memory{RoleID: "cfo-advisor", Type: "working"})
	assert.Error(t, err)
}

// TestMemoryStore_LazyExpiry 验证过期记忆从读路径消失
func TestMemoryStore_LazyExpiry(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	past := time.Now().Add(-time.Minute)
	expired := &model.Memory{
		RoleID: "cfo-advisor", Content: "stale", Type: model.MemoryTypeSession,
		ExpiresAt: &past,
	}
	require.NoError(t, s.Store(expired))

	_, err := s.Get(expired.ID)
	assert.Error(t, err)

	visible, err := s.List("cfo-advisor", model.MemoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	// 统计里体现为 expired
	stats, err := s.Stats("cfo-advisor")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalCount)
	assert.Equal(t, 1, stats.ExpiredCount)

	// 物理清理
	assert.Equal(t, 1, s.Sweep(time.Now()))
	stats, err = s.Stats("cfo-advisor")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ExpiredCount)
}

// TestMemoryStore_Share 验证共享的幂等性与部分失败
func TestMemoryStore_Share(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	m := &model.Memory{RoleID: "cfo-advisor", Content: "forecast", Type: model.MemoryTypeKnowledge}
	require.NoError(t, s.Store(m))

	// 部分目标非法：合法目标照常生效
	failed, err := s.Share(m.ID, []string{"ceo-advisor", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, failed)

	got, err := s.Get(m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSharedWith("ceo-advisor"))

	// 幂等：重复共享不产生重复条目
	_, err = s.Share(m.ID, []string{"ceo-advisor"})
	require.NoError(t, err)
	got, err = s.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ceo-advisor"}, got.SharedWith)

	// 全部失败返回错误
	_, err = s.Share(m.ID, []string{"ghost"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

// TestMemoryStore_Visible 验证共享与过滤条件下的可见集
func TestMemoryStore_Visible(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	own := &model.Memory{RoleID: "ceo-advisor", Content: "own", Type: model.MemoryTypeKnowledge, Tags: []string{"q3"}}
	require.NoError(t, s.Store(own))

	shared := &model.Memory{RoleID: "cfo-advisor", Content: "shared", Type: model.MemoryTypeKnowledge}
	require.NoError(t, s.Store(shared))
	_, err := s.Share(shared.ID, []string{"ceo-advisor"})
	require.NoError(t, err)

	private := &model.Memory{RoleID: "cmo-advisor", Content: "private", Type: model.MemoryTypeKnowledge}
	require.NoError(t, s.Store(private))

	// 默认只有自有记忆
	got := s.Visible("ceo-advisor", model.MemoryQuery{})
	require.Len(t, got, 1)
	assert.Equal(t, own.ID, got[0].ID)

	// 包含共享后可见两条，共享不可见的第三条仍被排除
	got = s.Visible("ceo-advisor", model.MemoryQuery{IncludeShared: true})
	assert.Len(t, got, 2)

	// 过滤条件在可见集上生效
	got = s.Visible("ceo-advisor", model.MemoryQuery{IncludeShared: true, Tags: []string{"q3"}})
	require.Len(t, got, 1)
	assert.Equal(t, own.ID, got[0].ID)
}

// TestMemoryStore_ClearForRole 验证清空时同时移除共享引用
func TestMemoryStore_ClearForRole(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	own := &model.Memory{RoleID: "cfo-advisor", Content: "a", Type: model.MemoryTypeKnowledge}
	require.NoError(t, s.Store(own))

	other := &model.Memory{RoleID: "ceo-advisor", Content: "b", Type: model.MemoryTypeKnowledge}
	require.NoError(t, s.Store(other))
	_, err := s.Share(other.ID, []string{"cfo-advisor"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.ClearForRole("cfo-advisor"))

	// 自有记忆删除
	_, err = s.Get(own.ID)
	assert.Error(t, err)

	// 其他角色记忆上的共享引用被移除
	got, err := s.Get(other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSharedWith("cfo-advisor"))
}

// TestMemoryStore_ListOrdering 验证列表按创建时间降序
func TestMemoryStore_ListOrdering(t *testing.T) {
	_, s := newTestStore(t, MemoryTTL{})

	base := time.Now()
	for i, content := range []string{"oldest", "middle", "newest"} {
		require.NoError(t, s.Store(&model.Memory{
			RoleID: "cfo-advisor", Content: content, Type: model.MemoryTypeKnowledge,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.List("cfo-advisor", model.MemoryQuery{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "newest", got[0].Content)
	assert.Equal(t, "oldest", got[2].Content)
}
