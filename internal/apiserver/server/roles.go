// Package server 角色管理接口
package server

import (
	"encoding/json"
	"net/http"

	"advisors-admin/internal/shared/model"
)

// createRoleRequest 创建角色请求
type createRoleRequest struct {
	model.Role

	// CustomTriggers 随角色一并注册的自定义触发正则（可选）
	CustomTriggers []string `json:"custom_triggers,omitempty"`
}

// CreateRole 创建角色
//
// 路由: POST /api/v1/roles
//
// 创建时按名称和领域自动派生触发模式，custom_triggers 作为
// 正则追加在派生模式之后。
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	role, err := h.engine.CreateRole(r.Context(), &req.Role, req.CustomTriggers)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// ListRoles 列出全部角色
//
// 路由: GET /api/v1/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.engine.ListRoles()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles": roles,
		"total": len(roles),
	})
}

// GetRole 获取角色详情
//
// 路由: GET /api/v1/roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.engine.GetRole(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// UpdateRole 更新角色
//
// 路由: PUT /api/v1/roles/{id}
//
// 请求体为部分更新：缺省字段保持原值。名称或领域变化时
// 派生触发模式会重建，自定义模式保留。
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var update model.RoleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.engine.UpdateRole(r.Context(), r.PathValue("id"), &update)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole 删除角色及其触发模式和全部记忆
//
// 路由: DELETE /api/v1/roles/{id}
//
// 内置角色禁止删除；有子角色的角色禁止删除。
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// setParentRequest 设置父角色请求
type setParentRequest struct {
	// ParentRoleID 父角色 ID，空值表示解除继承
	ParentRoleID string `json:"parent_role_id"`
}

// SetRoleParent 设置角色的父角色
//
// 路由: POST /api/v1/roles/{id}/parent
//
// 形成继承环时返回 409。
func (h *Handler) SetRoleParent(w http.ResponseWriter, r *http.Request) {
	var req setParentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.engine.SetRoleParent(r.Context(), r.PathValue("id"), req.ParentRoleID)
	if err != nil {
		writeEngineError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// ListTones 返回内置语气档案
//
// 路由: GET /api/v1/roles/tones
func (h *Handler) ListTones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tones": h.engine.Tones(),
	})
}
