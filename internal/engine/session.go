// Package engine 会话路由
//
// session.go 实现会话状态机：
//   - 会话表用读写锁保护，单个会话的路由决策由会话级互斥锁串行化
//   - 滞后规则：当前角色得分不低于最高分的 hysteresisRatio 倍时不切换
//   - 每次切换追加一条 SwitchEvent，并通知注册的监听器
package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"advisors-admin/internal/shared/model"
)

// SwitchListener 切换事件监听器（用于事件总线和网关推送）
type SwitchListener func(sessionID string, event model.SwitchEvent)

// RouteDecision 一次路由决策的结果
type RouteDecision struct {
	// RoleID 决策后的激活角色
	RoleID string `json:"role_id"`

	// Switched 本次决策是否发生了切换
	Switched bool `json:"switched"`

	// Reason 决策原因（保持/切换/手动指定）
	Reason string `json:"reason"`

	// Scores 本次打分结果（按确定性顺序）
	Scores []RoleScore `json:"scores,omitempty"`
}

// sessionEntry 会话记录及其串行化锁
type sessionEntry struct {
	mu      sync.Mutex
	session *model.Session
}

// SessionRouter 会话路由器
type SessionRouter struct {
	graph  *RoleGraph
	scorer *Scorer

	// hysteresisRatio 滞后比例，当前角色得分 >= top*ratio 时保持
	hysteresisRatio float64

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	listenerMu sync.RWMutex
	listeners  []SwitchListener
}

// NewSessionRouter 创建会话路由器
func NewSessionRouter(graph *RoleGraph, scorer *Scorer, hysteresisRatio float64) *SessionRouter {
	if hysteresisRatio <= 0 || hysteresisRatio > 1 {
		hysteresisRatio = 0.8
	}
	return &SessionRouter{
		graph:           graph,
		scorer:          scorer,
		hysteresisRatio: hysteresisRatio,
		sessions:        make(map[string]*sessionEntry),
	}
}

// OnSwitch 注册切换事件监听器
//
// 监听器在持有会话锁时同步调用，实现方不得回调路由器。
func (r *SessionRouter) OnSwitch(listener SwitchListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// CreateSession 创建会话
//
// sessionID 为空时自动生成；initialRoleID 非空时校验角色存在并
// 作为初始激活角色。
func (r *SessionRouter) CreateSession(sessionID, initialRoleID string) (*model.Session, error) {
	if initialRoleID != "" && !r.graph.HasRole(initialRoleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, initialRoleID)
	}
	if sessionID == "" {
		sessionID = newSessionID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		return nil, fmt.Errorf("session %s already exists", sessionID)
	}

	now := time.Now()
	session := &model.Session{
		SessionID:     sessionID,
		CurrentRoleID: initialRoleID,
		CreatedAt:     now,
		LastActivity:  now,
	}
	r.sessions[sessionID] = &sessionEntry{session: session}
	return session.Clone(), nil
}

// GetSession 获取会话快照
func (r *SessionRouter) GetSession(sessionID string) (*model.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// ListSessions 返回全部会话快照
func (r *SessionRouter) ListSessions() []*model.Session {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*model.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.session.Clone())
		e.mu.Unlock()
	}
	return out
}

// History 返回会话的切换历史
func (r *SessionRouter) History(sessionID string) ([]model.SwitchEvent, error) {
	session, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.History, nil
}

// CloseSession 关闭会话
//
// 关闭后对该会话的任何操作返回 ErrSessionNotFound。
func (r *SessionRouter) CloseSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(r.sessions, sessionID)
	return nil
}

// Route 对查询做一次路由决策
//
// forceRoleID 非空时跳过打分直接切换到指定角色。
// 否则按触发打分，应用滞后规则：当前角色得分不低于最高分的
// hysteresisRatio 倍时保持当前角色。
// 无角色命中且会话无当前角色时返回 ErrNoRoleMatched。
func (r *SessionRouter) Route(sessionID, query, forceRoleID string) (*RouteDecision, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	if forceRoleID != "" && !r.graph.HasRole(forceRoleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, forceRoleID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	session.LastActivity = time.Now()

	// 显式指定角色，跳过打分
	if forceRoleID != "" {
		if session.CurrentRoleID == forceRoleID {
			return &RouteDecision{RoleID: forceRoleID, Reason: "requested role already active"}, nil
		}
		reason := fmt.Sprintf("explicit role request: %s", forceRoleID)
		r.switchLocked(session, forceRoleID, reason, query, false)
		return &RouteDecision{RoleID: forceRoleID, Switched: true, Reason: reason}, nil
	}

	scores := r.scorer.Score(query)
	if len(scores) == 0 {
		if session.CurrentRoleID == "" {
			return nil, ErrNoRoleMatched
		}
		return &RouteDecision{
			RoleID: session.CurrentRoleID,
			Reason: "no trigger matched, keeping current role",
			Scores: scores,
		}, nil
	}

	top := scores[0]
	if session.CurrentRoleID != "" {
		if top.RoleID == session.CurrentRoleID {
			return &RouteDecision{
				RoleID: session.CurrentRoleID,
				Reason: "current role has top score",
				Scores: scores,
			}, nil
		}
		// 滞后规则：当前角色得分足够接近最高分时不切换
		var current float64
		for _, sc := range scores {
			if sc.RoleID == session.CurrentRoleID {
				current = sc.Score
				break
			}
		}
		if current >= r.hysteresisRatio*top.Score {
			return &RouteDecision{
				RoleID: session.CurrentRoleID,
				Reason: fmt.Sprintf("hysteresis: current score %.1f within %.0f%% of top %.1f",
					current, r.hysteresisRatio*100, top.Score),
				Scores: scores,
			}, nil
		}
	}

	reason := switchReason(top)
	r.switchLocked(session, top.RoleID, reason, query, true)
	return &RouteDecision{RoleID: top.RoleID, Switched: true, Reason: reason, Scores: scores}, nil
}

// ManualSwitch 手动切换会话角色
func (r *SessionRouter) ManualSwitch(sessionID, roleID, reason string) (*model.Session, error) {
	entry, err := r.entry(sessionID)
	if err != nil {
		return nil, err
	}
	if !r.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	if reason == "" {
		reason = "manual"
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	session := entry.session
	session.LastActivity = time.Now()
	if session.CurrentRoleID != roleID {
		r.switchLocked(session, roleID, reason, "", false)
	}
	return session.Clone(), nil
}

// entry 查找会话记录
func (r *SessionRouter) entry(sessionID string) (*sessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return entry, nil
}

// switchLocked 执行切换并通知监听器，调用方必须持有会话锁
func (r *SessionRouter) switchLocked(session *model.Session, toRoleID, reason, query string, automatic bool) {
	event := model.SwitchEvent{
		Timestamp:  time.Now(),
		FromRoleID: session.CurrentRoleID,
		ToRoleID:   toRoleID,
		Reason:     reason,
		Query:      querySnippet(query),
		Automatic:  automatic,
	}
	session.CurrentRoleID = toRoleID
	session.LastSwitchReason = reason
	session.History = append(session.History, event)

	r.listenerMu.RLock()
	listeners := r.listeners
	r.listenerMu.RUnlock()
	for _, listener := range listeners {
		listener(session.SessionID, event)
	}
}

// switchReason 生成可读的切换原因
func switchReason(top RoleScore) string {
	descs := make([]string, 0, len(top.Matched))
	for _, p := range top.Matched {
		if p.Description != "" {
			descs = append(descs, p.Description)
		}
	}
	if len(descs) == 0 {
		return fmt.Sprintf("trigger score %.1f", top.Score)
	}
	return fmt.Sprintf("triggered by %s (score %.1f)", strings.Join(descs, ", "), top.Score)
}

// maxQuerySnippet 切换事件里保留的查询片段长度（rune 数）
const maxQuerySnippet = 80

// querySnippet 截取查询片段，避免长查询撑爆切换历史
func querySnippet(query string) string {
	runes := []rune(query)
	if len(runes) <= maxQuerySnippet {
		return query
	}
	return string(runes[:maxQuerySnippet])
}

// newSessionID 生成会话 ID
func newSessionID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "sess-" + hex.EncodeToString(b)
}
