// Package server HTTP 接口集成测试
//
// 测试使用 Mock 供应商和纯内存引擎，不依赖外部服务。
// 指标注册在默认 Registry，测试服务只构造一次。
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisors-admin/internal/engine"
	"advisors-admin/internal/provider"
	"advisors-admin/internal/shared/model"
)

var (
	testOnce    sync.Once
	testHandler *Handler
	testServer  *httptest.Server
)

// testEnv 返回共享的测试服务（进程内只构造一次）
func testEnv(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	testOnce.Do(func() {
		mock := provider.NewMock()
		eng, err := engine.New(engine.Config{}, mock, mock, nil, nil)
		if err != nil {
			panic(err)
		}
		testHandler = NewHandler(eng, nil)
		testServer = httptest.NewServer(testHandler.Router())
	})
	return testHandler, testServer
}

// doJSON 发送 JSON 请求并解析响应体
func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// ============================================================================
// 基础接口
// ============================================================================

func TestHealth(t *testing.T) {
	_, srv := testEnv(t)

	var body map[string]string
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := testEnv(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, srv := testEnv(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/roles", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// ============================================================================
// 会话与路由
// ============================================================================

func TestSessionLifecycle(t *testing.T) {
	_, srv := testEnv(t)

	// 创建（指定初始角色）
	var session model.Session
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-http-lifecycle", "initial_role_id": "ceo-advisor"}, &session)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sess-http-lifecycle", session.SessionID)
	assert.Equal(t, "ceo-advisor", session.CurrentRoleID)

	// 获取
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/context/sessions/sess-http-lifecycle", nil, &session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 历史为空
	var history struct {
		Total int `json:"total"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/context/sessions/sess-http-lifecycle/history", nil, &history)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, history.Total)

	// 关闭
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/context/sessions/sess-http-lifecycle", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 关闭后不可见
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/context/sessions/sess-http-lifecycle", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSessionUnknownRole(t *testing.T) {
	_, srv := testEnv(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"initial_role_id": "nonexistent"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouteQuery(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-http-route"}, nil)

	var decision engine.RouteDecision
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/route", map[string]string{
		"session_id": "sess-http-route",
		"query":      "I need help with cash flow and budgeting decisions",
	}, &decision)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cfo-advisor", decision.RoleID)
	assert.True(t, decision.Switched)
	assert.NotEmpty(t, decision.Scores)
}

func TestProcessQuery(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-http-process"}, nil)

	var result engine.QueryResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/process", map[string]string{
		"session_id": "sess-http-process",
		"query":      "How should I improve our marketing and branding strategy?",
	}, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cmo-advisor", result.RoleID)
	assert.True(t, result.ContextSwitched)
	assert.Contains(t, result.Response, "[mock]")
}

func TestProcessQueryValidation(t *testing.T) {
	_, srv := testEnv(t)

	// 缺 session_id
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/process",
		map[string]string{"query": "hello"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 会话不存在
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/process",
		map[string]string{"session_id": "sess-http-ghost", "query": "hello"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessQueryNoRoleMatched(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-http-nomatch"}, nil)

	// 无触发命中且会话无当前角色
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/route", map[string]string{
		"session_id": "sess-http-nomatch",
		"query":      "zzzz qqqq xxxx",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestManualSwitch(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-http-switch", "initial_role_id": "ceo-advisor"}, nil)

	var session model.Session
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/switch", map[string]string{
		"session_id": "sess-http-switch",
		"role_id":    "hr-advisor",
		"reason":     "user picked HR",
	}, &session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hr-advisor", session.CurrentRoleID)
	require.Len(t, session.History, 1)
	assert.False(t, session.History[0].Automatic)

	// 未知角色
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/switch", map[string]string{
		"session_id": "sess-http-switch",
		"role_id":    "nonexistent",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ============================================================================
// 触发模式
// ============================================================================

func TestTriggerEndpoints(t *testing.T) {
	_, srv := testEnv(t)

	// 追加
	var pattern model.TriggerPattern
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/triggers", map[string]interface{}{
		"role_id":     "cfo-advisor",
		"pattern":     `\bboard deck\b`,
		"description": "board deck requests",
		"priority":    6,
		"is_regex":    true,
	}, &pattern)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.TriggerSourceCustom, pattern.Source)
	require.NotEmpty(t, pattern.ID)

	// 列出
	var list struct {
		Triggers []model.TriggerPattern `json:"triggers"`
		Total    int                    `json:"total"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/context/triggers/cfo-advisor", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, list.Total, 1)

	// 禁用
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/context/triggers/cfo-advisor", map[string]interface{}{
		"pattern_id": pattern.ID,
		"enabled":    false,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 移除
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/context/triggers/cfo-advisor", map[string]string{
		"pattern": `\bboard deck\b`,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 再次移除失败
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/context/triggers/cfo-advisor", map[string]string{
		"pattern": `\bboard deck\b`,
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddTriggerInvalidRegex(t *testing.T) {
	_, srv := testEnv(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/triggers", map[string]interface{}{
		"role_id":  "cfo-advisor",
		"pattern":  `[invalid`,
		"is_regex": true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddTriggerUnknownRole(t *testing.T) {
	_, srv := testEnv(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/triggers", map[string]interface{}{
		"role_id": "nonexistent",
		"pattern": "anything",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ============================================================================
// 角色
// ============================================================================

func TestRoleEndpoints(t *testing.T) {
	_, srv := testEnv(t)

	// 创建
	var role model.Role
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles", map[string]interface{}{
		"id":              "http-legal-advisor",
		"name":            "Legal Advisor",
		"description":     "Contract and compliance counsel",
		"domains":         []string{"legal", "contracts", "compliance"},
		"tone":            "analytical",
		"custom_triggers": []string{`\blawsuit\b`},
	}, &role)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, role.IsDefault)

	// 重复创建
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles", map[string]interface{}{
		"id":   "http-legal-advisor",
		"name": "Legal Advisor",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 获取
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/roles/http-legal-advisor", nil, &role)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Legal Advisor", role.Name)

	// 更新
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/roles/http-legal-advisor", map[string]interface{}{
		"description": "Corporate counsel",
	}, &role)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Corporate counsel", role.Description)
	assert.Equal(t, "Legal Advisor", role.Name)

	// 设置父角色
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles/http-legal-advisor/parent", map[string]string{
		"parent_role_id": "ceo-advisor",
	}, &role)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ceo-advisor", role.ParentRoleID)

	// 列表包含内置角色和新角色
	var roles struct {
		Total int `json:"total"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/roles", nil, &roles)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, roles.Total, 7)

	// 删除
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/roles/http-legal-advisor", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/roles/http-legal-advisor", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteDefaultRoleRejected(t *testing.T) {
	_, srv := testEnv(t)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/roles/ceo-advisor", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSetParentCycleRejected(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles", map[string]interface{}{
		"id": "http-cycle-a", "name": "Cycle A",
	}, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles", map[string]interface{}{
		"id": "http-cycle-b", "name": "Cycle B", "parent_role_id": "http-cycle-a",
	}, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles/http-cycle-a/parent", map[string]string{
		"parent_role_id": "http-cycle-b",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListTones(t *testing.T) {
	_, srv := testEnv(t)

	var body struct {
		Tones map[string]engine.ToneProfile `json:"tones"`
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/roles/tones", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body.Tones, "strategic")
	assert.Contains(t, body.Tones, "analytical")
}

// ============================================================================
// 记忆
// ============================================================================

func TestMemoryEndpoints(t *testing.T) {
	_, srv := testEnv(t)

	// 写入
	var memory model.Memory
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", map[string]interface{}{
		"role_id":    "operations-advisor",
		"content":    "The fulfillment workflow bottleneck is the packing station",
		"type":       "knowledge",
		"importance": "high",
		"tags":       []string{"fulfillment"},
	}, &memory)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, memory.ID)
	assert.True(t, memory.HasEmbedding())

	// 列出
	var list struct {
		Memories []*model.Memory `json:"memories"`
		Total    int             `json:"total"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/memories/operations-advisor?tags=fulfillment", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.GreaterOrEqual(t, list.Total, 1)

	// 语义检索
	var search struct {
		Results []engine.SearchResult `json:"results"`
		Total   int                   `json:"total"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories/search", map[string]interface{}{
		"role_id": "operations-advisor",
		"query":   "where is the fulfillment workflow bottleneck",
	}, &search)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.GreaterOrEqual(t, search.Total, 1)
	assert.Equal(t, memory.ID, search.Results[0].Memory.ID)

	// 共享（含一个无效目标，部分失败）
	var share struct {
		Shared int      `json:"shared"`
		Failed []string `json:"failed"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories/"+memory.ID+"/share", map[string]interface{}{
		"target_role_ids": []string{"ceo-advisor", "nonexistent"},
	}, &share)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, share.Shared)
	assert.Equal(t, []string{"nonexistent"}, share.Failed)

	// 统计
	var stats model.MemoryStats
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/memories/operations-advisor/stats", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, stats.TotalCount, 1)

	// 跨角色删除被拒
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/memories/ceo-advisor/"+memory.ID, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// 删除单条
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/memories/operations-advisor/"+memory.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/memories/operations-advisor/"+memory.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearMemories(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/roles", map[string]interface{}{
		"id": "http-memory-clear", "name": "Memory Clear",
	}, nil)
	for i := 0; i < 3; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", map[string]interface{}{
			"role_id": "http-memory-clear",
			"content": "note " + string(rune('a'+i)),
		}, nil)
	}

	var cleared struct {
		Removed int `json:"removed"`
	}
	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/memories/http-memory-clear", nil, &cleared)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, cleared.Removed)
}

func TestRememberValidation(t *testing.T) {
	_, srv := testEnv(t)

	// 缺内容
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", map[string]interface{}{
		"role_id": "ceo-advisor",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 非法类型
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", map[string]interface{}{
		"role_id": "ceo-advisor",
		"content": "x",
		"type":    "bogus",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 未知角色
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", map[string]interface{}{
		"role_id": "nonexistent",
		"content": "x",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ============================================================================
// WebSocket
// ============================================================================

// wsURL 把 httptest 服务地址转成 ws 协议
func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestSessionEventsWebSocket(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-ws-events", "initial_role_id": "ceo-advisor"}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/sessions/sess-ws-events/events"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// 触发一次手动切换
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/switch", map[string]string{
		"session_id": "sess-ws-events",
		"role_id":    "sales-advisor",
	}, nil)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame struct {
		Type string `json:"type"`
		Data struct {
			SessionID string `json:"session_id"`
			ToRoleID  string `json:"to_role_id"`
			Automatic bool   `json:"automatic"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "switch", frame.Type)
	assert.Equal(t, "sess-ws-events", frame.Data.SessionID)
	assert.Equal(t, "sales-advisor", frame.Data.ToRoleID)
	assert.False(t, frame.Data.Automatic)
}

func TestSessionEventsWebSocketUnknownSession(t *testing.T) {
	_, srv := testEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/sessions/sess-ws-ghost/events"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessStreamWebSocket(t *testing.T) {
	_, srv := testEnv(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/context/sessions",
		map[string]string{"session_id": "sess-ws-process"}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/process"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"session_id": "sess-ws-process",
		"query":      "How do I grow sales revenue and my pipeline?",
	}))

	var (
		sawSwitch   bool
		chunks      []string
		result      engine.QueryResult
		gotDone     bool
		firstChunk  = -1
		switchFrame = -1
	)
	for i := 0; !gotDone && i < 100; i++ {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var frame struct {
			Type  string          `json:"type"`
			Data  json.RawMessage `json:"data"`
			Error string          `json:"error"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		require.Empty(t, frame.Error)

		switch frame.Type {
		case "switch":
			sawSwitch = true
			switchFrame = i
		case "chunk":
			var chunk string
			require.NoError(t, json.Unmarshal(frame.Data, &chunk))
			chunks = append(chunks, chunk)
			if firstChunk < 0 {
				firstChunk = i
			}
		case "done":
			require.NoError(t, json.Unmarshal(frame.Data, &result))
			gotDone = true
		}
	}

	require.True(t, gotDone)
	assert.Equal(t, "sales-advisor", result.RoleID)
	assert.True(t, result.ContextSwitched)

	// 切换通知先于首个分片
	require.True(t, sawSwitch)
	assert.Less(t, switchFrame, firstChunk)

	// 分片拼接等于完整回复
	assert.Equal(t, result.Response, strings.Join(chunks, ""))
}

func TestProcessStreamBadRequest(t *testing.T) {
	_, srv := testEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/process"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"query": "no session"}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.NotEmpty(t, frame.Error)
}
