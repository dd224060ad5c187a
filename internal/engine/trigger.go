// Package engine 触发模式注册表
//
// trigger.go 实现 PatternRegistry：
//   - 按角色维护触发模式（字面关键词或正则）
//   - 注册时编译正则，失败立即拒绝（InvalidPatternError）
//   - 无显式模式时从角色 Domains 自动派生默认模式
//
// 默认领域模式移植自上线版本的触发词表，命中即向角色累加优先级。
package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"advisors-admin/internal/shared/model"
)

// defaultDomainPatterns 常见领域的默认触发正则
//
// key 为小写领域名；每条命中计 PriorityDomain 分。
var defaultDomainPatterns = map[string][]string{
	"finance": {
		`\b(?:finance|financial|money|budget|invest|stock|market|economy|retirement)\b`,
		`\b(?:roi|revenue|profit|loss|balance sheet|income statement)\b`,
	},
	"technology": {
		`\b(?:tech|technology|software|hardware|code|program|app|application)\b`,
		`\b(?:algorithm|database|server|cloud|api|interface|frontend|backend)\b`,
	},
	"healthcare": {
		`\b(?:health|medical|doctor|patient|disease|treatment|medicine|drug)\b`,
		`\b(?:symptom|diagnosis|therapy|hospital|clinic|prescription)\b`,
	},
	"marketing": {
		`\b(?:marketing|advertise|campaign|brand|customer|audience|market)\b`,
		`\b(?:seo|ppc|conversion|lead|funnel|engagement|retention)\b`,
	},
	"legal": {
		`\b(?:legal|law|contract|agreement|compliance|regulation|policy)\b`,
		`\b(?:liability|lawsuit|attorney|court|judge|plaintiff|defendant)\b`,
	},
	"education": {
		`\b(?:education|school|teach|learn|student|course|curriculum)\b`,
		`\b(?:lesson|assignment|exam|test|grade|professor|instructor)\b`,
	},
	"creative": {
		`\b(?:creative|design|art|artist|write|writer|create|craft)\b`,
		`\b(?:story|novel|poem|script|character|plot|theme|setting)\b`,
	},
}

// compiledPattern 已编译的触发模式
type compiledPattern struct {
	model.TriggerPattern
	re *regexp.Regexp
}

// PatternRegistry 触发模式注册表
//
// 被所有会话共享，读多写少，用读写锁保护。
type PatternRegistry struct {
	mu sync.RWMutex

	// patterns 按角色 ID 组织的已编译模式
	patterns map[string][]*compiledPattern
}

// NewPatternRegistry 创建空注册表
func NewPatternRegistry() *PatternRegistry {
	return &PatternRegistry{
		patterns: make(map[string][]*compiledPattern),
	}
}

// compile 编译触发模式
//
// 字面模式按整词、大小写不敏感匹配；正则模式附加 (?i) 前缀。
// 编译失败返回 InvalidPatternError。
func compile(p model.TriggerPattern) (*compiledPattern, error) {
	expr := p.Pattern
	if !p.IsRegex {
		expr = `\b` + regexp.QuoteMeta(strings.ToLower(p.Pattern)) + `\b`
	}
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: p.Pattern, Err: err}
	}
	return &compiledPattern{TriggerPattern: p, re: re}, nil
}

// Register 注册角色的触发模式
//
// customPatterns 为空时从角色派生默认模式：
//   - 每个领域的默认正则（PriorityDomain）
//   - 角色名整词模式（PriorityName）
//
// 提供 customPatterns 时在默认模式之外追加，优先级从 PriorityCustom
// 起递增（保持传入顺序的相对强弱）。
//
// 重复注册会替换该角色已有的全部模式。
func (r *PatternRegistry) Register(role *model.Role, customPatterns []string) error {
	compiled := make([]*compiledPattern, 0, 2*len(role.Domains)+len(customPatterns)+1)

	// 领域默认模式
	for _, domain := range role.Domains {
		for _, expr := range defaultDomainPatterns[strings.ToLower(domain)] {
			cp, err := compile(model.TriggerPattern{
				ID:          triggerID(),
				RoleID:      role.ID,
				Pattern:     expr,
				Priority:    model.PriorityDomain,
				Description: fmt.Sprintf("domain:%s", strings.ToLower(domain)),
				IsRegex:     true,
				Enabled:     true,
				Source:      model.TriggerSourceDomain,
				CreatedAt:   time.Now(),
			})
			if err != nil {
				return err
			}
			compiled = append(compiled, cp)
		}
	}

	// 角色名模式
	if role.Name != "" {
		cp, err := compile(model.TriggerPattern{
			ID:          triggerID(),
			RoleID:      role.ID,
			Pattern:     role.Name,
			Priority:    model.PriorityName,
			Description: "name",
			IsRegex:     false,
			Enabled:     true,
			Source:      model.TriggerSourceName,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return err
		}
		compiled = append(compiled, cp)
	}

	// 自定义模式（优先级递增，保持传入顺序）
	for i, expr := range customPatterns {
		cp, err := compile(model.TriggerPattern{
			ID:          triggerID(),
			RoleID:      role.ID,
			Pattern:     expr,
			Priority:    model.PriorityCustom + i,
			Description: "custom",
			IsRegex:     true,
			Enabled:     true,
			Source:      model.TriggerSourceCustom,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return err
		}
		compiled = append(compiled, cp)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[role.ID] = compiled
	return nil
}

// Unregister 移除角色的全部触发模式（角色删除时调用）
func (r *PatternRegistry) Unregister(roleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patterns, roleID)
}

// AddCustom 为角色追加一条自定义触发模式
//
// pattern 按正则编译，编译失败返回 InvalidPatternError 且注册表不变。
func (r *PatternRegistry) AddCustom(roleID, pattern, description string, priority int, isRegex bool) (*model.TriggerPattern, error) {
	if priority <= 0 {
		priority = model.PriorityCustom
	}
	cp, err := compile(model.TriggerPattern{
		ID:          triggerID(),
		RoleID:      roleID,
		Pattern:     pattern,
		Priority:    priority,
		Description: description,
		IsRegex:     isRegex,
		Enabled:     true,
		Source:      model.TriggerSourceCustom,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[roleID] = append(r.patterns[roleID], cp)
	return &cp.TriggerPattern, nil
}

// RemoveCustom 移除角色的一条自定义触发模式（按模式文本匹配）
//
// 只移除 custom 来源的模式；返回是否有模式被移除。
func (r *PatternRegistry) RemoveCustom(roleID, pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	patterns := r.patterns[roleID]
	for i, cp := range patterns {
		if cp.Source == model.TriggerSourceCustom && cp.Pattern == pattern {
			r.patterns[roleID] = append(patterns[:i], patterns[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled 启用/禁用指定模式
func (r *PatternRegistry) SetEnabled(roleID, patternID string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cp := range r.patterns[roleID] {
		if cp.ID == patternID {
			cp.Enabled = enabled
			return true
		}
	}
	return false
}

// Triggers 返回角色的全部触发模式快照
func (r *PatternRegistry) Triggers(roleID string) []model.TriggerPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TriggerPattern, 0, len(r.patterns[roleID]))
	for _, cp := range r.patterns[roleID] {
		out = append(out, cp.TriggerPattern)
	}
	return out
}

// triggerID 生成触发模式 ID
func triggerID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "trig-" + hex.EncodeToString(b)
}
