// Package server 路由配置
package server

import (
	"net/http"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 会话与路由 (Context):
//   - GET    /api/v1/context/sessions              - 列出会话
//   - POST   /api/v1/context/sessions              - 创建会话
//   - GET    /api/v1/context/sessions/{id}         - 获取会话详情
//   - DELETE /api/v1/context/sessions/{id}         - 关闭会话
//   - GET    /api/v1/context/sessions/{id}/history - 切换历史
//   - POST   /api/v1/context/process               - 处理问答（路由 + 补全 + 记忆）
//   - POST   /api/v1/context/route                 - 仅路由决策（不补全）
//   - POST   /api/v1/context/switch                - 手动切换角色
//
// 触发模式 (Trigger):
//   - POST   /api/v1/context/triggers              - 追加自定义触发模式
//   - GET    /api/v1/context/triggers/{roleId}     - 列出角色触发模式
//   - PATCH  /api/v1/context/triggers/{roleId}     - 启用/禁用触发模式
//   - DELETE /api/v1/context/triggers/{roleId}     - 移除触发模式（pattern 在请求体）
//
// 角色管理 (Role):
//   - GET    /api/v1/roles            - 列出角色
//   - POST   /api/v1/roles            - 创建角色
//   - GET    /api/v1/roles/tones      - 内置语气档案
//   - GET    /api/v1/roles/{id}       - 获取角色详情
//   - PUT    /api/v1/roles/{id}       - 更新角色
//   - DELETE /api/v1/roles/{id}       - 删除角色
//   - POST   /api/v1/roles/{id}/parent - 设置父角色
//
// 记忆管理 (Memory):
//   - POST   /api/v1/memories                      - 显式写入记忆
//   - POST   /api/v1/memories/search               - 语义检索
//   - GET    /api/v1/memories/{roleId}             - 列出角色可见记忆
//   - DELETE /api/v1/memories/{roleId}             - 清空角色记忆
//   - GET    /api/v1/memories/{roleId}/stats       - 记忆统计
//   - POST   /api/v1/memories/{id}/share           - 共享记忆
//   - DELETE /api/v1/memories/{roleId}/{memoryId}  - 删除单条记忆
//
// WebSocket:
//   - GET    /ws/sessions/{id}/events - 切换事件实时推送
//   - GET    /ws/process              - 流式问答
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Context 接口
	mux.HandleFunc("GET /api/v1/context/sessions", h.ListSessions)
	mux.HandleFunc("POST /api/v1/context/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/context/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/v1/context/sessions/{id}", h.CloseSession)
	mux.HandleFunc("GET /api/v1/context/sessions/{id}/history", h.GetHistory)
	mux.HandleFunc("POST /api/v1/context/process", h.ProcessQuery)
	mux.HandleFunc("POST /api/v1/context/route", h.RouteQuery)
	mux.HandleFunc("POST /api/v1/context/switch", h.ManualSwitch)

	// Trigger 接口
	mux.HandleFunc("POST /api/v1/context/triggers", h.AddTrigger)
	mux.HandleFunc("GET /api/v1/context/triggers/{roleId}", h.ListTriggers)
	mux.HandleFunc("PATCH /api/v1/context/triggers/{roleId}", h.SetTriggerEnabled)
	mux.HandleFunc("DELETE /api/v1/context/triggers/{roleId}", h.RemoveTrigger)

	// Role 接口
	mux.HandleFunc("GET /api/v1/roles", h.ListRoles)
	mux.HandleFunc("POST /api/v1/roles", h.CreateRole)
	mux.HandleFunc("GET /api/v1/roles/tones", h.ListTones)
	mux.HandleFunc("GET /api/v1/roles/{id}", h.GetRole)
	mux.HandleFunc("PUT /api/v1/roles/{id}", h.UpdateRole)
	mux.HandleFunc("DELETE /api/v1/roles/{id}", h.DeleteRole)
	mux.HandleFunc("POST /api/v1/roles/{id}/parent", h.SetRoleParent)

	// Memory 接口
	mux.HandleFunc("POST /api/v1/memories", h.RememberMemory)
	mux.HandleFunc("POST /api/v1/memories/search", h.SearchMemories)
	mux.HandleFunc("GET /api/v1/memories/{roleId}", h.ListMemories)
	mux.HandleFunc("DELETE /api/v1/memories/{roleId}", h.ClearMemories)
	mux.HandleFunc("GET /api/v1/memories/{roleId}/stats", h.GetMemoryStats)
	mux.HandleFunc("POST /api/v1/memories/{id}/share", h.ShareMemory)
	mux.HandleFunc("DELETE /api/v1/memories/{roleId}/{memoryId}", h.DeleteMemory)

	// 应用指标中间件到 REST API
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用 CORS 中间件
	corsHandler := corsMiddleware(apiHandler)

	// 创建顶层路由，WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/sessions/{id}/events", h.eventGateway.HandleSessionEvents)
	topMux.HandleFunc("GET /ws/process", h.HandleProcessStream)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
