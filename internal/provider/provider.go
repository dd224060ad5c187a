// Package provider 模型供应商适配层
//
// Provider 是对外部模型服务的适配接口，负责：
//   - 对话补全（一次性与流式）
//   - 文本向量化（嵌入）
//
// 设计原则：
//   - 每个供应商（OpenAI、Anthropic、Mock）实现一个 Provider
//   - Provider 无状态，HTTP 客户端在构造时注入，便于测试
//   - 上游失败统一包装为 *Error，HTTP 层据此映射 502
//
// 文件组织：
//   - provider.go: Provider 接口、注册表和错误类型
//   - openai.go: OpenAI 兼容接口（补全 + 嵌入）
//   - anthropic.go: Anthropic Messages 接口（无嵌入能力）
//   - mock.go: 确定性的本地实现（开发与测试）
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingNotSupported 供应商不提供嵌入接口
var ErrEmbeddingNotSupported = errors.New("provider does not support embeddings")

// Provider 模型供应商适配接口
type Provider interface {
	// Name 返回供应商名称，用于注册表查找
	Name() string

	// Complete 生成一次完整回复
	Complete(ctx context.Context, systemPrompt, query string) (string, error)

	// CompleteStream 流式生成回复，每个分片回调一次 fn；
	// fn 返回错误时中止生成
	CompleteStream(ctx context.Context, systemPrompt, query string, fn func(chunk string) error) error

	// Embed 生成文本的向量表示
	// 不支持嵌入的供应商返回 ErrEmbeddingNotSupported
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Error 上游供应商调用失败
type Error struct {
	// Provider 供应商名称
	Provider string

	// StatusCode 上游返回的 HTTP 状态码（网络错误时为 0）
	StatusCode int

	// Message 上游错误描述
	Message string

	// Err 底层错误
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: upstream status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry Provider 注册表
type Registry struct {
	providers map[string]Provider
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register 注册 Provider
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get 获取 Provider
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// List 列出所有 Provider
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
