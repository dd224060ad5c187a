// Package engine 触发打分
//
// scorer.go 对一条查询计算每个角色的触发得分：
//   - 命中的启用模式按 Priority 累加
//   - 多样性加成：命中的优先级档位数 × 权重
//   - 排序严格确定：得分降序 → 命中模式数降序 → 角色 ID 升序
package engine

import (
	"sort"

	"advisors-admin/internal/shared/model"
)

// RoleScore 单个角色的打分结果
type RoleScore struct {
	// RoleID 角色 ID
	RoleID string `json:"role_id"`

	// Score 总得分（优先级累加 + 多样性加成）
	Score float64 `json:"score"`

	// Matched 命中的模式（用于切换原因展示）
	Matched []model.TriggerPattern `json:"matched,omitempty"`
}

// Scorer 触发打分器
//
// 无内部状态，打分时从注册表取模式快照，可被并发调用。
type Scorer struct {
	registry *PatternRegistry

	// diversityWeight 多样性加成权重（每个命中的优先级档位加这么多分）
	diversityWeight float64
}

// NewScorer 创建打分器
func NewScorer(registry *PatternRegistry, diversityWeight float64) *Scorer {
	return &Scorer{registry: registry, diversityWeight: diversityWeight}
}

// Score 对查询打分，返回得分大于零的角色，按确定性顺序排列
//
// 空查询不命中任何模式，返回空切片。
func (s *Scorer) Score(query string) []RoleScore {
	if query == "" {
		return nil
	}

	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()

	scores := make([]RoleScore, 0, len(s.registry.patterns))
	for roleID, patterns := range s.registry.patterns {
		var (
			base       float64
			matched    []model.TriggerPattern
			priorities = map[int]struct{}{}
		)
		for _, cp := range patterns {
			if !cp.Enabled {
				continue
			}
			if cp.re.MatchString(query) {
				base += float64(cp.Priority)
				priorities[cp.Priority] = struct{}{}
				matched = append(matched, cp.TriggerPattern)
			}
		}
		if base <= 0 {
			continue
		}
		scores = append(scores, RoleScore{
			RoleID:  roleID,
			Score:   base + s.diversityWeight*float64(len(priorities)),
			Matched: matched,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if len(scores[i].Matched) != len(scores[j].Matched) {
			return len(scores[i].Matched) > len(scores[j].Matched)
		}
		return scores[i].RoleID < scores[j].RoleID
	})
	return scores
}
