// Package server 记忆管理接口
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"advisors-admin/internal/shared/model"
)

// rememberRequest 显式写入记忆请求
type rememberRequest struct {
	RoleID     string           `json:"role_id"`
	Content    string           `json:"content"`
	Type       model.MemoryType `json:"type,omitempty"`
	Importance model.Importance `json:"importance,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	Category   string           `json:"category,omitempty"`
}

// RememberMemory 显式写入一条记忆
//
// 路由: POST /api/v1/memories
//
// 内容会被向量化以支持语义检索；type 缺省为 knowledge，
// importance 缺省为 medium。
func (h *Handler) RememberMemory(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "role_id is required")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Type == "" {
		req.Type = model.MemoryTypeKnowledge
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid memory type")
		return
	}
	if req.Importance == "" {
		req.Importance = model.ImportanceMedium
	}
	if !req.Importance.Valid() {
		writeError(w, http.StatusBadRequest, "invalid importance")
		return
	}

	memory, err := h.engine.Remember(r.Context(), &model.Memory{
		RoleID:     req.RoleID,
		Content:    req.Content,
		Type:       req.Type,
		Importance: req.Importance,
		Tags:       req.Tags,
		Category:   req.Category,
	})
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}

	h.metrics.MemoriesStored.Inc()
	writeJSON(w, http.StatusCreated, memory)
}

// memoryQueryFromRequest 从查询参数构造记忆过滤条件
//
// 支持的参数：type、category、tags（逗号分隔）、
// include_shared、include_inherited（缺省 true）。
func memoryQueryFromRequest(r *http.Request) model.MemoryQuery {
	q := r.URL.Query()
	query := model.MemoryQuery{
		Type:             model.MemoryType(q.Get("type")),
		Category:         q.Get("category"),
		IncludeShared:    q.Get("include_shared") != "false",
		IncludeInherited: q.Get("include_inherited") != "false",
	}
	if tags := q.Get("tags"); tags != "" {
		query.Tags = strings.Split(tags, ",")
	}
	return query
}

// ListMemories 列出角色可见的记忆
//
// 路由: GET /api/v1/memories/{roleId}
//
// 查询参数：type、category、tags、include_shared、include_inherited。
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := h.engine.ListMemories(r.PathValue("roleId"), memoryQueryFromRequest(r))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"total":    len(memories),
	})
}

// searchRequest 语义检索请求
type searchRequest struct {
	RoleID string `json:"role_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`

	// Filter 过滤条件（可选，缺省包含共享和继承记忆）
	Filter *model.MemoryQuery `json:"filter,omitempty"`
}

// SearchMemories 语义检索角色可见的记忆
//
// 路由: POST /api/v1/memories/search
func (h *Handler) SearchMemories(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "role_id is required")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	filter := model.MemoryQuery{IncludeShared: true, IncludeInherited: true}
	if req.Filter != nil {
		filter = *req.Filter
	}

	results, err := h.engine.SearchMemories(r.Context(), req.RoleID, req.Query, req.Limit, filter)
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

// shareRequest 共享记忆请求
type shareRequest struct {
	TargetRoleIDs []string `json:"target_role_ids"`
}

// ShareMemory 把记忆共享给目标角色
//
// 路由: POST /api/v1/memories/{id}/share
//
// 部分目标不存在时仍对有效目标授权，失败目标在 failed 中返回。
func (h *Handler) ShareMemory(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TargetRoleIDs) == 0 {
		writeError(w, http.StatusBadRequest, "target_role_ids is required")
		return
	}

	failed, err := h.engine.ShareMemory(r.Context(), r.PathValue("id"), req.TargetRoleIDs)
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shared": len(req.TargetRoleIDs) - len(failed),
		"failed": failed,
	})
}

// ClearMemories 清空角色的全部记忆
//
// 路由: DELETE /api/v1/memories/{roleId}
func (h *Handler) ClearMemories(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.ClearMemories(r.Context(), r.PathValue("roleId"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// DeleteMemory 删除单条记忆
//
// 路由: DELETE /api/v1/memories/{roleId}/{memoryId}
//
// 记忆必须属于路径中的角色，防止跨角色误删。
func (h *Handler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	memoryID := r.PathValue("memoryId")
	memory, err := h.engine.GetMemory(memoryID)
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	if memory.RoleID != r.PathValue("roleId") {
		writeError(w, http.StatusForbidden, "memory does not belong to this role")
		return
	}

	if err := h.engine.DeleteMemory(r.Context(), memoryID); err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetMemoryStats 获取角色的记忆统计
//
// 路由: GET /api/v1/memories/{roleId}/stats
func (h *Handler) GetMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.MemoryStats(r.PathValue("roleId"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
