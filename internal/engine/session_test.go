package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisors-admin/internal/shared/model"
)

// newTestRouter 构建带两个角色的路由器：
//   - finance-advisor：finance 领域（两条模式）
//   - tech-advisor：technology 领域（两条模式）
func newTestRouter(t *testing.T) (*RoleGraph, *SessionRouter) {
	t.Helper()
	g := NewRoleGraph(64)
	r := NewPatternRegistry()

	finance := &model.Role{ID: "finance-advisor", Name: "Finance Advisor", Domains: []string{"finance"}}
	tech := &model.Role{ID: "tech-advisor", Name: "Tech Advisor", Domains: []string{"technology"}}
	for _, role := range []*model.Role{finance, tech} {
		require.NoError(t, g.AddRole(role))
		require.NoError(t, r.Register(role, nil))
	}
	return g, NewSessionRouter(g, NewScorer(r, 2), 0.8)
}

// TestSessionRouter_CreateAndClose 验证会话生命周期
func TestSessionRouter_CreateAndClose(t *testing.T) {
	_, router := newTestRouter(t)

	session, err := router.CreateSession("", "finance-advisor")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "finance-advisor", session.CurrentRoleID)

	// 重复创建被拒绝
	_, err = router.CreateSession(session.SessionID, "")
	assert.Error(t, err)

	// 初始角色必须存在
	_, err = router.CreateSession("", "ghost")
	assert.ErrorIs(t, err, ErrUnknownRole)

	// 关闭后任何操作返回 ErrSessionNotFound
	require.NoError(t, router.CloseSession(session.SessionID))
	_, err = router.GetSession(session.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = router.Route(session.SessionID, "budget", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, router.CloseSession(session.SessionID), ErrSessionNotFound)
}

// TestSessionRouter_Route 验证自动路由与切换事件
func TestSessionRouter_Route(t *testing.T) {
	_, router := newTestRouter(t)
	session, err := router.CreateSession("sess-route", "")
	require.NoError(t, err)

	var events []model.SwitchEvent
	router.OnSwitch(func(_ string, ev model.SwitchEvent) { events = append(events, ev) })

	// 无当前角色时首次命中即切换
	decision, err := router.Route(session.SessionID, "help me with my budget", "")
	require.NoError(t, err)
	assert.True(t, decision.Switched)
	assert.Equal(t, "finance-advisor", decision.RoleID)
	require.Len(t, events, 1)
	assert.True(t, events[0].Automatic)
	assert.Empty(t, events[0].FromRoleID)

	// 明显更高分的其他领域触发切换
	decision, err = router.Route(session.SessionID, "which database and cloud server should we pick", "")
	require.NoError(t, err)
	assert.True(t, decision.Switched)
	assert.Equal(t, "tech-advisor", decision.RoleID)

	got, err := router.GetSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "tech-advisor", got.CurrentRoleID)
	assert.Len(t, got.History, 2)
}

// TestSessionRouter_Hysteresis 验证滞后规则抑制抖动
func TestSessionRouter_Hysteresis(t *testing.T) {
	g := NewRoleGraph(64)
	r := NewPatternRegistry()
	// role-a：优先级 2 的模式，命中得分 2 + 2 = 4
	// role-b：优先级 3 的模式，命中得分 3 + 2 = 5
	a := &model.Role{ID: "role-a", Name: "RoleA"}
	b := &model.Role{ID: "role-b", Name: "RoleB"}
	require.NoError(t, g.AddRole(a))
	require.NoError(t, g.AddRole(b))
	require.NoError(t, r.Register(a, nil))
	require.NoError(t, r.Register(b, nil))
	_, err := r.AddCustom("role-a", `\balpha\b`, "", 2, true)
	require.NoError(t, err)
	_, err = r.AddCustom("role-b", `\bbeta\b`, "", 3, true)
	require.NoError(t, err)

	router := NewSessionRouter(g, NewScorer(r, 2), 0.8)
	session, err := router.CreateSession("sess-hys", "role-a")
	require.NoError(t, err)

	// 当前角色 4 分，最高分 5：4 >= 0.8×5，保持当前角色
	decision, err := router.Route(session.SessionID, "alpha beta", "")
	require.NoError(t, err)
	assert.False(t, decision.Switched)
	assert.Equal(t, "role-a", decision.RoleID)
	assert.Contains(t, decision.Reason, "hysteresis")

	// 当前角色是最高分时直接保持
	decision, err = router.Route(session.SessionID, "alpha", "")
	require.NoError(t, err)
	assert.False(t, decision.Switched)
	assert.Equal(t, "role-a", decision.RoleID)

	// 当前角色完全未命中：0 < 0.8×top，切换
	decision, err = router.Route(session.SessionID, "beta", "")
	require.NoError(t, err)
	assert.True(t, decision.Switched)
	assert.Equal(t, "role-b", decision.RoleID)
}

// TestSessionRouter_NoMatch 验证未命中时的行为
func TestSessionRouter_NoMatch(t *testing.T) {
	_, router := newTestRouter(t)

	// 无当前角色且未命中
	session, err := router.CreateSession("sess-empty", "")
	require.NoError(t, err)
	_, err = router.Route(session.SessionID, "hello there", "")
	assert.ErrorIs(t, err, ErrNoRoleMatched)

	// 有当前角色时未命中保持不变
	session2, err := router.CreateSession("sess-keep", "finance-advisor")
	require.NoError(t, err)
	decision, err := router.Route(session2.SessionID, "hello there", "")
	require.NoError(t, err)
	assert.False(t, decision.Switched)
	assert.Equal(t, "finance-advisor", decision.RoleID)
}

// TestSessionRouter_ForceRole 验证显式指定角色跳过打分
func TestSessionRouter_ForceRole(t *testing.T) {
	_, router := newTestRouter(t)
	session, err := router.CreateSession("sess-force", "finance-advisor")
	require.NoError(t, err)

	// 查询内容与 tech 无关，但显式指定生效
	decision, err := router.Route(session.SessionID, "budget question", "tech-advisor")
	require.NoError(t, err)
	assert.True(t, decision.Switched)
	assert.Equal(t, "tech-advisor", decision.RoleID)

	// 指定当前角色不产生切换事件
	decision, err = router.Route(session.SessionID, "budget question", "tech-advisor")
	require.NoError(t, err)
	assert.False(t, decision.Switched)

	// 指定不存在的角色
	_, err = router.Route(session.SessionID, "q", "ghost")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

// TestSessionRouter_ManualSwitch 验证手动切换
func TestSessionRouter_ManualSwitch(t *testing.T) {
	_, router := newTestRouter(t)
	session, err := router.CreateSession("sess-manual", "finance-advisor")
	require.NoError(t, err)

	got, err := router.ManualSwitch(session.SessionID, "tech-advisor", "")
	require.NoError(t, err)
	assert.Equal(t, "tech-advisor", got.CurrentRoleID)
	require.Len(t, got.History, 1)
	assert.False(t, got.History[0].Automatic)
	assert.Equal(t, "manual", got.History[0].Reason)

	// 切到当前角色是幂等的
	got, err = router.ManualSwitch(session.SessionID, "tech-advisor", "")
	require.NoError(t, err)
	assert.Len(t, got.History, 1)

	_, err = router.ManualSwitch(session.SessionID, "ghost", "")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
