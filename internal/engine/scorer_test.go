package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisors-admin/internal/shared/model"
)

func newTestScorer(t *testing.T) (*PatternRegistry, *Scorer) {
	t.Helper()
	r := NewPatternRegistry()
	return r, NewScorer(r, 2)
}

// TestScorer_Score 验证优先级累加与多样性加成
func TestScorer_Score(t *testing.T) {
	r, s := newTestScorer(t)

	// finance 领域两条模式（优先级 1）+ 名称模式（优先级 2）
	require.NoError(t, r.Register(&model.Role{
		ID: "cfo-advisor", Name: "CFO", Domains: []string{"finance"},
	}, nil))

	tests := []struct {
		name      string
		query     string
		wantScore float64
	}{
		// 命中一条领域模式：1 + 2×1 档位
		{"单领域命中", "how should I manage my budget", 3},
		// 命中两条领域模式（budget + roi）：1+1 + 2×1 档位
		{"双领域命中", "what budget gives the best roi", 4},
		// 领域 + 名称：1 + 2 + 2×2 档位
		{"领域加名称命中", "ask the CFO about our budget", 7},
		// 大小写不敏感
		{"大小写不敏感", "BUDGET review", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := s.Score(tt.query)
			require.Len(t, scores, 1)
			assert.Equal(t, "cfo-advisor", scores[0].RoleID)
			assert.Equal(t, tt.wantScore, scores[0].Score)
		})
	}
}

// TestScorer_NoMatch 验证未命中与空查询
func TestScorer_NoMatch(t *testing.T) {
	r, s := newTestScorer(t)
	require.NoError(t, r.Register(&model.Role{ID: "cfo-advisor", Name: "CFO", Domains: []string{"finance"}}, nil))

	assert.Empty(t, s.Score("tell me about the weather"))
	assert.Empty(t, s.Score(""))
}

// TestScorer_DisabledPattern 验证禁用模式不参与打分
func TestScorer_DisabledPattern(t *testing.T) {
	r, s := newTestScorer(t)
	role := &model.Role{ID: "analyst", Name: "Analyst"}
	require.NoError(t, r.Register(role, nil))

	p, err := r.AddCustom("analyst", `\bvaluation\b`, "", 0, true)
	require.NoError(t, err)

	require.NotEmpty(t, s.Score("company valuation"))
	require.True(t, r.SetEnabled("analyst", p.ID, false))
	assert.Empty(t, s.Score("company valuation"))
}

// TestScorer_Deterministic 验证同分时的确定性排序
func TestScorer_Deterministic(t *testing.T) {
	r, s := newTestScorer(t)

	// 两个角色使用相同的自定义模式，得分必然相同
	require.NoError(t, r.Register(&model.Role{ID: "role-b", Name: "RoleB"}, []string{`\bgrowth\b`}))
	require.NoError(t, r.Register(&model.Role{ID: "role-a", Name: "RoleA"}, []string{`\bgrowth\b`}))

	for i := 0; i < 10; i++ {
		scores := s.Score("growth plan")
		require.Len(t, scores, 2)
		// 同分且命中数相同，按角色 ID 升序
		assert.Equal(t, "role-a", scores[0].RoleID)
		assert.Equal(t, "role-b", scores[1].RoleID)
	}
}

// TestScorer_MatchCountTieBreak 验证同分时命中多者优先
func TestScorer_MatchCountTieBreak(t *testing.T) {
	r, s := newTestScorer(t)

	// role-one：单条优先级 4 的模式，得分 4 + 2 = 6
	require.NoError(t, r.Register(&model.Role{ID: "role-one", Name: "One"}, nil))
	_, err := r.AddCustom("role-one", `\bexpand\b`, "", 4, true)
	require.NoError(t, err)

	// role-two：两条同档位模式各 2 分，得分 2+2 + 2 = 6
	require.NoError(t, r.Register(&model.Role{ID: "role-two", Name: "Two"}, nil))
	_, err = r.AddCustom("role-two", `\bexpand\b`, "", 2, true)
	require.NoError(t, err)
	_, err = r.AddCustom("role-two", `\bmarket\b`, "", 2, true)
	require.NoError(t, err)

	scores := s.Score("expand into a new market")
	require.Len(t, scores, 2)
	assert.Equal(t, scores[0].Score, scores[1].Score)
	assert.Equal(t, "role-two", scores[0].RoleID)
}
