// Package provider OpenAI 兼容适配
//
// openai.go 实现 Chat Completions 与 Embeddings 接口的调用，
// 兼容所有 OpenAI 风格的网关（base_url 可替换）。
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

// OpenAIConfig OpenAI 适配配置
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// OpenAI OpenAI 兼容供应商
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI 创建 OpenAI 供应商
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name 返回供应商名称
func (p *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete 调用 Chat Completions 生成回复
func (p *OpenAI) Complete(ctx context.Context, systemPrompt, query string) (string, error) {
	body, err := p.post(ctx, "/chat/completions", chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", &Error{Provider: p.Name(), Message: "decode response", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: p.Name(), Message: "empty choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream 流式调用 Chat Completions（SSE）
func (p *OpenAI) CompleteStream(ctx context.Context, systemPrompt, query string, fn func(string) error) error {
	body, err := p.post(ctx, "/chat/completions", chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		Stream: true,
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
		if payload == "[DONE]" {
			break
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // 跳过无法解析的分片
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := fn(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &Error{Provider: p.Name(), Message: "read stream", Err: err}
	}
	return nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed 调用 Embeddings 生成向量
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := p.post(ctx, "/embeddings", embeddingRequest{
		Model: p.cfg.EmbeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp embeddingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &Error{Provider: p.Name(), Message: "decode response", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &Error{Provider: p.Name(), Message: "empty embedding in response"}
	}
	return resp.Data[0].Embedding, nil
}

// post 发送 JSON 请求，非 2xx 包装为 *Error
func (p *OpenAI) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.cfg.BaseURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

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
			Message:    fmt.Sprintf("%s: %s", path, strings.TrimSpace(string(detail))),
		}
	}
	return resp.Body, nil
}
