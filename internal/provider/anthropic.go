// Package provider Anthropic 适配
//
// anthropic.go 实现 Messages 接口的调用。Anthropic 不提供嵌入
// 接口，Embed 统一返回 ErrEmbeddingNotSupported，嵌入供应商需
// 在配置中单独指定。
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// anthropicVersion Messages 接口版本号
const anthropicVersion = "2023-06-01"

// AnthropicConfig Anthropic 适配配置
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Anthropic Anthropic 供应商
type Anthropic struct {
	cfg    AnthropicConfig
	client *http.Client
}

// NewAnthropic 创建 Anthropic 供应商
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Anthropic{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name 返回供应商名称
func (p *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// Complete 调用 Messages 生成回复
func (p *Anthropic) Complete(ctx context.Context, systemPrompt, query string) (string, error) {
	body, err := p.post(ctx, anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: query}},
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp anthropicResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", &Error{Provider: p.Name(), Message: "decode response", Err: err}
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", &Error{Provider: p.Name(), Message: "empty content in response"}
	}
	return out.String(), nil
}

// CompleteStream 流式调用 Messages（SSE）
func (p *Anthropic) CompleteStream(ctx context.Context, systemPrompt, query string, fn func(string) error) error {
	body, err := p.post(ctx, anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: query}},
		Stream:    true,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			if err := fn(event.Delta.Text); err != nil {
				return err
			}
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &Error{Provider: p.Name(), Message: "read stream", Err: err}
	}
	return nil
}

// Embed Anthropic 无嵌入接口
func (p *Anthropic) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrEmbeddingNotSupported
}

// post 发送 Messages 请求，非 2xx 包装为 *Error
func (p *Anthropic) post(ctx context.Context, payload anthropicRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.cfg.BaseURL, "/")+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "request failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &Error{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("/messages: %s", strings.TrimSpace(string(detail))),
		}
	}
	return resp.Body, nil
}
