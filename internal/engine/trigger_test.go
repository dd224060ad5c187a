package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisors-admin/internal/shared/model"
)

// TestPatternRegistry_Register 验证默认模式派生
func TestPatternRegistry_Register(t *testing.T) {
	r := NewPatternRegistry()
	role := &model.Role{
		ID:      "cfo-advisor",
		Name:    "CFO Advisor",
		Domains: []string{"finance", "unknown-domain"},
	}
	require.NoError(t, r.Register(role, nil))

	patterns := r.Triggers("cfo-advisor")
	// finance 两条领域模式 + 一条名称模式；未知领域不产生模式
	require.Len(t, patterns, 3)

	var domains, names int
	for _, p := range patterns {
		switch p.Source {
		case model.TriggerSourceDomain:
			domains++
			assert.Equal(t, model.PriorityDomain, p.Priority)
		case model.TriggerSourceName:
			names++
			assert.Equal(t, model.PriorityName, p.Priority)
		}
	}
	assert.Equal(t, 2, domains)
	assert.Equal(t, 1, names)
}

// TestPatternRegistry_RegisterCustom 验证自定义模式的优先级递增
func TestPatternRegistry_RegisterCustom(t *testing.T) {
	r := NewPatternRegistry()
	role := &model.Role{ID: "analyst", Name: "Analyst"}
	require.NoError(t, r.Register(role, []string{`\bvaluation\b`, `\bdue diligence\b`}))

	var priorities []int
	for _, p := range r.Triggers("analyst") {
		if p.Source == model.TriggerSourceCustom {
			priorities = append(priorities, p.Priority)
		}
	}
	assert.Equal(t, []int{model.PriorityCustom, model.PriorityCustom + 1}, priorities)
}

// TestPatternRegistry_InvalidPattern 验证非法正则在注册时被拒绝
func TestPatternRegistry_InvalidPattern(t *testing.T) {
	r := NewPatternRegistry()
	role := &model.Role{ID: "analyst", Name: "Analyst"}

	err := r.Register(role, []string{`(unclosed`})
	require.Error(t, err)

	var perr *InvalidPatternError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, `(unclosed`, perr.Pattern)

	// AddCustom 失败时注册表不变
	require.NoError(t, r.Register(role, nil))
	before := len(r.Triggers("analyst"))
	_, err = r.AddCustom("analyst", `[bad`, "", 0, true)
	require.Error(t, err)
	assert.Len(t, r.Triggers("analyst"), before)
}

// TestPatternRegistry_RemoveCustom 验证只有自定义模式可被移除
func TestPatternRegistry_RemoveCustom(t *testing.T) {
	r := NewPatternRegistry()
	role := &model.Role{ID: "analyst", Name: "Analyst", Domains: []string{"finance"}}
	require.NoError(t, r.Register(role, nil))

	p, err := r.AddCustom("analyst", `\bequity\b`, "custom", 0, true)
	require.NoError(t, err)
	assert.Equal(t, model.TriggerSourceCustom, p.Source)

	assert.True(t, r.RemoveCustom("analyst", `\bequity\b`))
	assert.False(t, r.RemoveCustom("analyst", `\bequity\b`))

	// 派生模式不可通过 RemoveCustom 移除
	for _, dp := range r.Triggers("analyst") {
		if dp.Source == model.TriggerSourceDomain {
			assert.False(t, r.RemoveCustom("analyst", dp.Pattern))
		}
	}
}

// TestPatternRegistry_SetEnabled 验证启用/禁用
func TestPatternRegistry_SetEnabled(t *testing.T) {
	r := NewPatternRegistry()
	role := &model.Role{ID: "analyst", Name: "Analyst"}
	require.NoError(t, r.Register(role, nil))

	patterns := r.Triggers("analyst")
	require.NotEmpty(t, patterns)

	assert.True(t, r.SetEnabled("analyst", patterns[0].ID, false))
	assert.False(t, r.Triggers("analyst")[0].Enabled)

	assert.False(t, r.SetEnabled("analyst", "missing-id", false))
}
