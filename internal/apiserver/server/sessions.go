// Package server 会话、路由与触发模式接口
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"advisors-admin/internal/engine"
)

// ============================================================================
// 会话接口
// ============================================================================

// createSessionRequest 创建会话请求
type createSessionRequest struct {
	// SessionID 指定会话 ID（可选，留空自动生成）
	SessionID string `json:"session_id,omitempty"`

	// InitialRoleID 初始激活角色（可选）
	InitialRoleID string `json:"initial_role_id,omitempty"`
}

// CreateSession 创建会话
//
// 路由: POST /api/v1/context/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.engine.CreateSession(req.SessionID, req.InitialRoleID)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}

	h.metrics.SessionsActive.Inc()
	writeJSON(w, http.StatusCreated, session)
}

// ListSessions 列出全部会话
//
// 路由: GET /api/v1/context/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.engine.ListSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// GetSession 获取会话详情
//
// 路由: GET /api/v1/context/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.GetSession(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CloseSession 关闭会话
//
// 路由: DELETE /api/v1/context/sessions/{id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CloseSession(r.PathValue("id")); err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	h.metrics.SessionsActive.Dec()
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GetHistory 获取会话的切换历史
//
// 路由: GET /api/v1/context/sessions/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.engine.History(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"total":   len(history),
	})
}

// ============================================================================
// 问答与路由接口
// ============================================================================

// processRequest 问答/路由请求
type processRequest struct {
	// SessionID 会话 ID
	SessionID string `json:"session_id"`

	// Query 用户查询
	Query string `json:"query"`

	// RoleID 显式指定角色（可选，跳过触发打分）
	RoleID string `json:"role_id,omitempty"`

	// CustomInstructions 附加到系统提示词的自定义指令（可选）
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// decodeProcessRequest 解析并校验问答/路由请求
func decodeProcessRequest(r *http.Request) (*processRequest, string) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "invalid request body"
	}
	if req.SessionID == "" {
		return nil, "session_id is required"
	}
	if req.Query == "" {
		return nil, "query is required"
	}
	return &req, ""
}

// ProcessQuery 处理一次问答
//
// 路由: POST /api/v1/context/process
//
// 流程：路由决策 → 记忆检索 → 组装提示词 → 模型补全 → 记录问答记忆。
func (h *Handler) ProcessQuery(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeProcessRequest(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	start := time.Now()
	result, err := h.engine.ProcessQuery(r.Context(), req.SessionID, req.Query, engine.ProcessOptions{
		ForceRoleID:        req.RoleID,
		CustomInstructions: req.CustomInstructions,
	})
	if err != nil {
		h.metrics.RecordQuery(req.RoleID, "error", time.Since(start))
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}

	h.metrics.RecordQuery(result.RoleID, "ok", time.Since(start))
	h.metrics.MemoriesStored.Inc()
	writeJSON(w, http.StatusOK, result)
}

// RouteQuery 只做路由决策，不触发补全
//
// 路由: POST /api/v1/context/route
//
// 用于前端预览查询会被路由到哪个角色。
func (h *Handler) RouteQuery(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeProcessRequest(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	decision, err := h.engine.Route(req.SessionID, req.Query, req.RoleID)
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// manualSwitchRequest 手动切换请求
type manualSwitchRequest struct {
	SessionID string `json:"session_id"`
	RoleID    string `json:"role_id"`
	Reason    string `json:"reason,omitempty"`
}

// ManualSwitch 手动切换会话角色
//
// 路由: POST /api/v1/context/switch
func (h *Handler) ManualSwitch(w http.ResponseWriter, r *http.Request) {
	var req manualSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "session_id and role_id are required")
		return
	}

	session, err := h.engine.ManualSwitch(req.SessionID, req.RoleID, req.Reason)
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ============================================================================
// 触发模式接口
// ============================================================================

// addTriggerRequest 追加触发模式请求
type addTriggerRequest struct {
	RoleID      string `json:"role_id"`
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	IsRegex     bool   `json:"is_regex,omitempty"`
}

// AddTrigger 为角色追加自定义触发模式
//
// 路由: POST /api/v1/context/triggers
func (h *Handler) AddTrigger(w http.ResponseWriter, r *http.Request) {
	var req addTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "role_id and pattern are required")
		return
	}

	pattern, err := h.engine.AddTrigger(r.Context(), req.RoleID, req.Pattern, req.Description, req.Priority, req.IsRegex)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, pattern)
}

// ListTriggers 列出角色的触发模式
//
// 路由: GET /api/v1/context/triggers/{roleId}
func (h *Handler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.engine.ListTriggers(r.PathValue("roleId"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"triggers": triggers,
		"total":    len(triggers),
	})
}

// setTriggerEnabledRequest 启用/禁用触发模式请求
type setTriggerEnabledRequest struct {
	PatternID string `json:"pattern_id"`
	Enabled   bool   `json:"enabled"`
}

// SetTriggerEnabled 启用/禁用触发模式
//
// 路由: PATCH /api/v1/context/triggers/{roleId}
func (h *Handler) SetTriggerEnabled(w http.ResponseWriter, r *http.Request) {
	var req setTriggerEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatternID == "" {
		writeError(w, http.StatusBadRequest, "pattern_id is required")
		return
	}

	if !h.engine.SetTriggerEnabled(r.Context(), r.PathValue("roleId"), req.PatternID, req.Enabled) {
		writeError(w, http.StatusNotFound, "trigger pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pattern_id": req.PatternID,
		"enabled":    req.Enabled,
	})
}

// removeTriggerRequest 移除触发模式请求
type removeTriggerRequest struct {
	Pattern string `json:"pattern"`
}

// RemoveTrigger 移除角色的自定义触发模式
//
// 路由: DELETE /api/v1/context/triggers/{roleId}
//
// 只有自定义模式可移除，派生模式通过禁用屏蔽。
func (h *Handler) RemoveTrigger(w http.ResponseWriter, r *http.Request) {
	var req removeTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}

	if !h.engine.RemoveTrigger(r.Context(), r.PathValue("roleId"), req.Pattern) {
		writeError(w, http.StatusNotFound, "custom trigger pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
