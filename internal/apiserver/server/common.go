// Package server 提供 HTTP API 处理器
//
// 本包实现路由引擎的 RESTful API，包括：
//   - 会话与路由（Context）接口
//   - 角色管理（Role）接口
//   - 记忆管理（Memory）接口
//   - 触发模式（Trigger）接口
//   - WebSocket 实时推送（切换事件、流式问答）
//
// 文件组织：
//   - common.go: 通用工具函数、Handler 定义和错误映射
//   - sessions.go: 会话、路由和触发模式接口
//   - roles.go: 角色相关接口
//   - memories.go: 记忆相关接口
//   - websocket.go: WebSocket 切换事件网关和流式问答
//   - metrics.go: Prometheus 指标
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"advisors-admin/internal/engine"
	"advisors-admin/internal/provider"
	"advisors-admin/internal/shared/eventbus"
	"advisors-admin/internal/shared/storage"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到对应的处理函数
//   - 将引擎错误映射为 HTTP 状态码
//   - 协调 WebSocket 事件网关
type Handler struct {
	engine *engine.Engine

	// eventBus 切换事件总线（Redis 未配置时为 nil，网关降级为进程内广播）
	eventBus eventbus.SwitchEventBus

	// 内部组件
	eventGateway *EventGateway // WebSocket 切换事件网关
	metrics      *Metrics      // Prometheus 指标
}

// NewHandler 创建 Handler 实例
//
// eventBus 可为 nil：此时切换事件只推送到本实例的 WebSocket 连接。
func NewHandler(eng *engine.Engine, eventBus eventbus.SwitchEventBus) *Handler {
	h := &Handler{
		engine:   eng,
		eventBus: eventBus,
		metrics:  NewMetrics("advisors"),
	}
	h.eventGateway = NewEventGateway(eng, eventBus, h.metrics)
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError 把引擎/存储/供应商错误映射为 HTTP 状态码
//
// 映射规则：
//   - ErrUnknownRole / ErrSessionNotFound / storage.ErrNotFound → 404
//   - ErrNoRoleMatched → 422
//   - ErrAccessDenied → 403
//   - ErrCyclicInheritance / ErrRoleExists / ErrDefaultRoleImmutable → 409
//   - InvalidPatternError → 400
//   - provider.Error → 502
//   - 其余 → fallback（校验类接口传 400，处理类接口传 500）
func writeEngineError(w http.ResponseWriter, err error, fallback int) {
	var patternErr *engine.InvalidPatternError
	var providerErr *provider.Error

	status := fallback
	switch {
	case errors.Is(err, engine.ErrUnknownRole),
		errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, engine.ErrMemoryNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNoRoleMatched):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrCyclicInheritance),
		errors.Is(err, engine.ErrRoleExists),
		errors.Is(err, engine.ErrDefaultRoleImmutable):
		status = http.StatusConflict
	case errors.As(err, &patternErr):
		status = http.StatusBadRequest
	case errors.As(err, &providerErr):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

// generateID 生成带前缀的唯一标识符
//
// 使用加密安全的随机数生成 6 字节（12 个十六进制字符）的 ID，
// 格式为：prefix-xxxxxxxxxxxx
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
