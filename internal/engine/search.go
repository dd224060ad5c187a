// Package engine 语义检索
//
// search.go 实现记忆的语义检索：
//   - 查询向量由外部嵌入服务生成（Embedder），调用期间不持有任何锁
//   - 召回集 = 角色可见记忆中带向量的条目
//   - 综合得分 = 相似度、重要性权重、新近度的加权混合
//   - 同分时新记忆优先，结果顺序严格确定
package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"advisors-admin/internal/shared/model"
)

// Embedder 文本向量化接口，由 provider 层实现
type Embedder interface {
	// Embed 生成文本的向量表示
	//
	// 返回空向量且无错误时表示文本不可向量化（如空串），
	// 检索路径据此返回空结果而非报错。
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchWeights 综合得分的混合权重
//
// 三者之和应为 1；RecencyWindow 内的记忆线性衰减，
// 窗口外统一取下限 0.8。
type SearchWeights struct {
	Similarity    float64
	Importance    float64
	Recency       float64
	RecencyWindow time.Duration
}

// DefaultSearchWeights 默认混合权重
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{
		Similarity:    0.7,
		Importance:    0.2,
		Recency:       0.1,
		RecencyWindow: 30 * 24 * time.Hour,
	}
}

// SearchResult 单条检索结果
type SearchResult struct {
	// Memory 命中的记忆
	Memory *model.Memory `json:"memory"`

	// Similarity 与查询向量的余弦相似度
	Similarity float64 `json:"similarity"`

	// Score 综合得分（排序依据）
	Score float64 `json:"score"`
}

// Searcher 记忆语义检索器
type Searcher struct {
	store    *MemoryStore
	embedder Embedder
	weights  SearchWeights

	// defaultLimit 未指定 limit 时的返回条数
	defaultLimit int
}

// NewSearcher 创建检索器
func NewSearcher(store *MemoryStore, embedder Embedder, weights SearchWeights, defaultLimit int) *Searcher {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if weights.RecencyWindow <= 0 {
		weights.RecencyWindow = 30 * 24 * time.Hour
	}
	return &Searcher{
		store:        store,
		embedder:     embedder,
		weights:      weights,
		defaultLimit: defaultLimit,
	}
}

// Search 对角色可见记忆做语义检索
//
// 空查询或查询不可向量化时返回空结果。
// limit <= 0 时取默认条数。嵌入调用失败时整个检索失败。
func (s *Searcher) Search(ctx context.Context, roleID, query string, limit int, filter model.MemoryQuery) ([]SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	// 向量化在取记忆快照之前完成，期间不持有存储锁
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}

	memories := s.store.Visible(roleID, filter)
	now := time.Now()

	results := make([]SearchResult, 0, len(memories))
	for _, m := range memories {
		if !m.HasEmbedding() {
			continue
		}
		sim := cosineSimilarity(vec, m.Embedding)
		results = append(results, SearchResult{
			Memory:     m,
			Similarity: sim,
			Score: s.weights.Similarity*sim +
				s.weights.Importance*m.Importance.Weight() +
				s.weights.Recency*s.recencyFactor(m.CreatedAt, now),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// 同分新记忆优先
		if !results[i].Memory.CreatedAt.Equal(results[j].Memory.CreatedAt) {
			return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// recencyFactor 新近度因子：窗口内从 1.0 线性衰减到 0.8，窗口外取 0.8
func (s *Searcher) recencyFactor(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1.0
	}
	factor := 1.0 - (float64(age)/float64(s.weights.RecencyWindow))*0.2
	return math.Max(0.8, factor)
}

// cosineSimilarity 计算两个向量的余弦相似度
//
// 维度不一致或任一向量为零向量时返回 0。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
