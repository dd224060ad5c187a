// Package provider 本地 Mock 适配
//
// mock.go 提供不依赖外部服务的确定性实现，用于开发环境和测试：
//   - Complete 回显查询并标注角色提示词长度
//   - Embed 按词面特征哈希到固定维度，同一文本总是得到同一向量，
//     且共享词汇的文本向量相似
package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

// mockEmbeddingDim Mock 向量维度
const mockEmbeddingDim = 64

// Mock 确定性的本地供应商
type Mock struct{}

// NewMock 创建 Mock 供应商
func NewMock() *Mock { return &Mock{} }

// Name 返回供应商名称
func (p *Mock) Name() string { return "mock" }

// Complete 返回回显回复
func (p *Mock) Complete(_ context.Context, systemPrompt, query string) (string, error) {
	return "[mock] " + query + " (system prompt length: " + strconv.Itoa(len(systemPrompt)) + ")", nil
}

// CompleteStream 把回显回复按词切分为分片
func (p *Mock) CompleteStream(ctx context.Context, systemPrompt, query string, fn func(string) error) error {
	full, _ := p.Complete(ctx, systemPrompt, query)
	words := strings.SplitAfter(full, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

// Embed 词袋哈希向量
//
// 每个小写词按 FNV 哈希落到一个维度累加，最后做 L2 归一化。
// 空文本返回空向量（调用方按不可向量化处理）。
func (p *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil, nil
	}

	vec := make([]float32, mockEmbeddingDim)
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%mockEmbeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
