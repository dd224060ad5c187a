// Package engine 路由引擎门面
//
// engine.go 把触发打分、会话路由、记忆存储、语义检索和上下文组装
// 组合成对外的统一入口。HTTP 层只与 Engine 交互，不直接触碰内部组件。
//
// 写路径采用 write-through：内存状态先行生效，持久化由 Persister
// 同步落库；启动时通过 LoadState 从仓储恢复。
package engine

import (
	"context"
	"fmt"
	"time"

	"advisors-admin/internal/shared/model"
	"advisors-admin/pkg/logging"
)

// Completer 对话补全接口，由 provider 层实现
type Completer interface {
	// Complete 生成一次完整回复
	Complete(ctx context.Context, systemPrompt, query string) (string, error)

	// CompleteStream 流式生成回复，每个分片回调一次 fn；
	// fn 返回错误时中止生成
	CompleteStream(ctx context.Context, systemPrompt, query string, fn func(chunk string) error) error
}

// Persister 持久化接口，由仓储层实现
//
// Engine 在内存状态变更后同步调用；nil Persister 表示纯内存运行
// （测试和 :memory: 场景）。
type Persister interface {
	SaveRole(ctx context.Context, role *model.Role) error
	DeleteRole(ctx context.Context, roleID string) error
	SaveMemory(ctx context.Context, m *model.Memory) error
	DeleteMemory(ctx context.Context, memoryID string) error
	DeleteMemoriesByRole(ctx context.Context, roleID string) error
	SaveTrigger(ctx context.Context, p *model.TriggerPattern) error
	DeleteTrigger(ctx context.Context, triggerID string) error
	DeleteTriggersByRole(ctx context.Context, roleID string) error
	DeleteExpiredMemories(ctx context.Context, before time.Time) (int64, error)
}

// Config 引擎配置
type Config struct {
	// HysteresisRatio 切换滞后比例
	HysteresisRatio float64

	// DiversityBonusWeight 打分多样性加成权重
	DiversityBonusWeight float64

	// MaxInheritanceDepth 继承链深度上限
	MaxInheritanceDepth int

	// TTL 各记忆类型的存活时长
	TTL MemoryTTL

	// SearchWeights 检索混合权重
	SearchWeights SearchWeights

	// SearchLimit 检索默认返回条数
	SearchLimit int

	// PromptMemoryLimit 注入提示词的记忆条数上限
	PromptMemoryLimit int
}

// QueryResult 一次问答的结果
type QueryResult struct {
	SessionID       string `json:"session_id"`
	RoleID          string `json:"role_id"`
	Query           string `json:"query"`
	Response        string `json:"response"`
	ContextSwitched bool   `json:"context_switched"`
	SwitchReason    string `json:"switch_reason,omitempty"`
	MemoriesUsed    int    `json:"memories_used"`
}

// ProcessOptions 问答处理选项
type ProcessOptions struct {
	// ForceRoleID 显式指定角色，跳过触发打分
	ForceRoleID string

	// CustomInstructions 附加到系统提示词的自定义指令
	CustomInstructions string
}

// Engine 路由引擎
type Engine struct {
	cfg Config

	graph     *RoleGraph
	registry  *PatternRegistry
	scorer    *Scorer
	store     *MemoryStore
	searcher  *Searcher
	router    *SessionRouter
	assembler *Assembler

	embedder  Embedder
	completer Completer
	persister Persister
	logger    *logging.Logger
}

// New 创建引擎并注册内置角色
func New(cfg Config, embedder Embedder, completer Completer, persister Persister, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Default("engine")
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.DiversityBonusWeight <= 0 {
		cfg.DiversityBonusWeight = 2
	}
	if cfg.SearchWeights == (SearchWeights{}) {
		cfg.SearchWeights = DefaultSearchWeights()
	}

	graph := NewRoleGraph(cfg.MaxInheritanceDepth)
	registry := NewPatternRegistry()
	scorer := NewScorer(registry, cfg.DiversityBonusWeight)
	store := NewMemoryStore(graph, cfg.TTL)

	e := &Engine{
		cfg:       cfg,
		graph:     graph,
		registry:  registry,
		scorer:    scorer,
		store:     store,
		searcher:  NewSearcher(store, embedder, cfg.SearchWeights, cfg.SearchLimit),
		router:    NewSessionRouter(graph, scorer, cfg.HysteresisRatio),
		assembler: NewAssembler(cfg.PromptMemoryLimit),
		embedder:  embedder,
		completer: completer,
		persister: persister,
		logger:    logger,
	}

	for _, role := range DefaultRoles() {
		if err := graph.AddRole(role); err != nil {
			return nil, fmt.Errorf("register default role %s: %w", role.ID, err)
		}
		if err := registry.Register(role, nil); err != nil {
			return nil, fmt.Errorf("register default triggers for %s: %w", role.ID, err)
		}
	}

	e.router.OnSwitch(func(sessionID string, ev model.SwitchEvent) {
		logger.SwitchLog(sessionID, ev.FromRoleID, ev.ToRoleID, ev.Reason, ev.Automatic)
	})
	return e, nil
}

// OnSwitch 注册切换事件监听器（网关推送、事件总线）
func (e *Engine) OnSwitch(listener SwitchListener) {
	e.router.OnSwitch(listener)
}

// LoadState 从仓储恢复状态（启动时调用一次）
//
// 与内置角色同 ID 的记录跳过；自定义触发模式在角色默认模式之上追加。
func (e *Engine) LoadState(roles []*model.Role, triggers []*model.TriggerPattern, memories []*model.Memory) error {
	for _, role := range roles {
		if e.graph.HasRole(role.ID) {
			continue
		}
		if err := e.graph.AddRole(role); err != nil {
			return fmt.Errorf("restore role %s: %w", role.ID, err)
		}
		if err := e.registry.Register(role, nil); err != nil {
			return fmt.Errorf("restore triggers for %s: %w", role.ID, err)
		}
	}
	for _, p := range triggers {
		if p.Source != model.TriggerSourceCustom {
			continue
		}
		restored, err := e.registry.AddCustom(p.RoleID, p.Pattern, p.Description, p.Priority, p.IsRegex)
		if err != nil {
			e.logger.WithError(err).Warn("skip invalid persisted trigger", "role_id", p.RoleID, "pattern", p.Pattern)
			continue
		}
		if !p.Enabled {
			e.registry.SetEnabled(p.RoleID, restored.ID, false)
		}
	}
	for _, m := range memories {
		if m.IsExpired(time.Now()) {
			continue
		}
		if err := e.store.Store(m); err != nil {
			e.logger.WithError(err).Warn("skip persisted memory", "memory_id", m.ID)
		}
	}
	return nil
}

// ============================================================================
// 会话
// ============================================================================

// CreateSession 创建会话
func (e *Engine) CreateSession(sessionID, initialRoleID string) (*model.Session, error) {
	return e.router.CreateSession(sessionID, initialRoleID)
}

// GetSession 获取会话快照
func (e *Engine) GetSession(sessionID string) (*model.Session, error) {
	return e.router.GetSession(sessionID)
}

// ListSessions 列出全部会话
func (e *Engine) ListSessions() []*model.Session {
	return e.router.ListSessions()
}

// History 返回会话切换历史
func (e *Engine) History(sessionID string) ([]model.SwitchEvent, error) {
	return e.router.History(sessionID)
}

// CloseSession 关闭会话
func (e *Engine) CloseSession(sessionID string) error {
	return e.router.CloseSession(sessionID)
}

// ManualSwitch 手动切换会话角色
func (e *Engine) ManualSwitch(sessionID, roleID, reason string) (*model.Session, error) {
	return e.router.ManualSwitch(sessionID, roleID, reason)
}

// Route 只做路由决策，不触发补全（用于决策预览）
func (e *Engine) Route(sessionID, query, forceRoleID string) (*RouteDecision, error) {
	return e.router.Route(sessionID, query, forceRoleID)
}

// ProcessQuery 处理一次问答
//
// 流程：路由决策 → 语义检索 → 组装提示词 → 补全 → 记录问答记忆。
// 问答记忆只在补全成功后写入。
func (e *Engine) ProcessQuery(ctx context.Context, sessionID, query string, opts ProcessOptions) (*QueryResult, error) {
	prompt, decision, memCount, err := e.prepare(ctx, sessionID, query, opts)
	if err != nil {
		return nil, err
	}

	response, err := e.completer.Complete(ctx, prompt, query)
	if err != nil {
		return nil, err
	}

	e.recordExchange(ctx, decision.RoleID, query, response)
	return &QueryResult{
		SessionID:       sessionID,
		RoleID:          decision.RoleID,
		Query:           query,
		Response:        response,
		ContextSwitched: decision.Switched,
		SwitchReason:    switchReasonOf(decision),
		MemoriesUsed:    memCount,
	}, nil
}

// ProcessQueryStream 流式处理一次问答
//
// 每个回复分片回调一次 fn；完整回复在流结束后作为问答记忆写入。
func (e *Engine) ProcessQueryStream(ctx context.Context, sessionID, query string, opts ProcessOptions, fn func(chunk string) error) (*QueryResult, error) {
	prompt, decision, memCount, err := e.prepare(ctx, sessionID, query, opts)
	if err != nil {
		return nil, err
	}

	var full []byte
	err = e.completer.CompleteStream(ctx, prompt, query, func(chunk string) error {
		full = append(full, chunk...)
		return fn(chunk)
	})
	if err != nil {
		return nil, err
	}

	response := string(full)
	e.recordExchange(ctx, decision.RoleID, query, response)
	return &QueryResult{
		SessionID:       sessionID,
		RoleID:          decision.RoleID,
		Query:           query,
		Response:        response,
		ContextSwitched: decision.Switched,
		SwitchReason:    switchReasonOf(decision),
		MemoriesUsed:    memCount,
	}, nil
}

// prepare 路由 + 检索 + 组装提示词（问答两种模式共用）
func (e *Engine) prepare(ctx context.Context, sessionID, query string, opts ProcessOptions) (string, *RouteDecision, int, error) {
	decision, err := e.router.Route(sessionID, query, opts.ForceRoleID)
	if err != nil {
		return "", nil, 0, err
	}

	role, err := e.graph.GetRole(decision.RoleID)
	if err != nil {
		return "", nil, 0, err
	}

	results, err := e.searcher.Search(ctx, decision.RoleID, query, e.cfg.SearchLimit, model.MemoryQuery{
		IncludeShared:    true,
		IncludeInherited: true,
	})
	if err != nil {
		// 检索失败不阻断问答，降级为无记忆上下文
		e.logger.WithError(err).Warn("memory search failed, continuing without context",
			"session_id", sessionID, "role_id", decision.RoleID)
		results = nil
	}

	var sw *SwitchContext
	if decision.Switched {
		if from := e.previousRole(sessionID); from != nil && from.ID != role.ID {
			sw = &SwitchContext{FromRole: from, ToRole: role, Reason: decision.Reason}
		}
	}

	prompt := e.assembler.Assemble(role, results, sw, opts.CustomInstructions)
	return prompt, decision, len(results), nil
}

// previousRole 取会话最近一次切换的来源角色
func (e *Engine) previousRole(sessionID string) *model.Role {
	session, err := e.router.GetSession(sessionID)
	if err != nil || len(session.History) == 0 {
		return nil
	}
	fromID := session.History[len(session.History)-1].FromRoleID
	if fromID == "" {
		return nil
	}
	role, err := e.graph.GetRole(fromID)
	if err != nil {
		return nil
	}
	return role
}

// recordExchange 把一次问答写成会话记忆（补全成功后调用）
//
// 向量化和持久化失败只降级告警，不影响已返回的回复。
func (e *Engine) recordExchange(ctx context.Context, roleID, query, response string) {
	m := &model.Memory{
		RoleID:     roleID,
		Content:    fmt.Sprintf("User asked: %s\nAssistant responded: %s", query, response),
		Type:       model.MemoryTypeSession,
		Importance: model.ImportanceMedium,
	}
	if vec, err := e.embedder.Embed(ctx, m.Content); err != nil {
		e.logger.WithError(err).Warn("embed exchange memory failed", "role_id", roleID)
	} else {
		m.Embedding = vec
	}
	if err := e.store.Store(m); err != nil {
		e.logger.WithError(err).Warn("store exchange memory failed", "role_id", roleID)
		return
	}
	e.persistMemory(ctx, m)
}

// persistMemory 尽力持久化一条记忆，失败只降级告警
func (e *Engine) persistMemory(ctx context.Context, m *model.Memory) {
	if e.persister == nil {
		return
	}
	if err := e.persister.SaveMemory(ctx, m); err != nil {
		e.logger.WithError(err).Warn("persist memory failed", "memory_id", m.ID)
	}
}

func switchReasonOf(d *RouteDecision) string {
	if !d.Switched {
		return ""
	}
	return d.Reason
}

// ============================================================================
// 角色
// ============================================================================

// CreateRole 创建角色并注册触发模式
//
// 语气必须为内置档案之一（空值回退 strategic）。
// customTriggers 作为正则追加到派生模式之后。
func (e *Engine) CreateRole(ctx context.Context, role *model.Role, customTriggers []string) (*model.Role, error) {
	if role.ID == "" {
		return nil, fmt.Errorf("role id is required")
	}
	if role.Tone == "" {
		role.Tone = defaultTone
	}
	if !ValidTone(role.Tone) {
		return nil, fmt.Errorf("invalid tone %q", role.Tone)
	}
	if role.MemoryAccessLevel == "" {
		role.MemoryAccessLevel = model.AccessStandard
	}
	if !role.MemoryAccessLevel.Valid() {
		return nil, fmt.Errorf("invalid memory access level %q", role.MemoryAccessLevel)
	}
	role.IsDefault = false

	if err := e.graph.AddRole(role); err != nil {
		return nil, err
	}
	if err := e.registry.Register(role, customTriggers); err != nil {
		// 触发模式非法时回滚角色
		_ = e.graph.DeleteRole(role.ID)
		return nil, err
	}

	if e.persister != nil {
		if err := e.persister.SaveRole(ctx, role); err != nil {
			return nil, fmt.Errorf("persist role: %w", err)
		}
		for _, p := range e.registry.Triggers(role.ID) {
			if p.Source != model.TriggerSourceCustom {
				continue
			}
			if err := e.persister.SaveTrigger(ctx, &p); err != nil {
				return nil, fmt.Errorf("persist trigger: %w", err)
			}
		}
	}
	return e.graph.GetRole(role.ID)
}

// GetRole 获取角色
func (e *Engine) GetRole(roleID string) (*model.Role, error) {
	return e.graph.GetRole(roleID)
}

// ListRoles 列出全部角色
func (e *Engine) ListRoles() []*model.Role {
	return e.graph.ListRoles()
}

// UpdateRole 更新角色
//
// 名称、领域或语气变化时重建派生触发模式，自定义模式保留。
func (e *Engine) UpdateRole(ctx context.Context, roleID string, update *model.RoleUpdate) (*model.Role, error) {
	if update.Tone != nil && !ValidTone(*update.Tone) {
		return nil, fmt.Errorf("invalid tone %q", *update.Tone)
	}

	updated, err := e.graph.UpdateRole(roleID, update)
	if err != nil {
		return nil, err
	}

	if update.Name != nil || update.Domains != nil {
		customs := make([]model.TriggerPattern, 0)
		for _, p := range e.registry.Triggers(roleID) {
			if p.Source == model.TriggerSourceCustom {
				customs = append(customs, p)
			}
		}
		if err := e.registry.Register(updated, nil); err != nil {
			return nil, err
		}
		for _, p := range customs {
			if _, err := e.registry.AddCustom(p.RoleID, p.Pattern, p.Description, p.Priority, p.IsRegex); err != nil {
				return nil, err
			}
		}
	}

	if e.persister != nil {
		if err := e.persister.SaveRole(ctx, updated); err != nil {
			return nil, fmt.Errorf("persist role: %w", err)
		}
	}
	return updated, nil
}

// SetRoleParent 设置角色的父角色
func (e *Engine) SetRoleParent(ctx context.Context, roleID, parentID string) (*model.Role, error) {
	if err := e.graph.SetParent(roleID, parentID); err != nil {
		return nil, err
	}
	role, err := e.graph.GetRole(roleID)
	if err != nil {
		return nil, err
	}
	if e.persister != nil {
		if err := e.persister.SaveRole(ctx, role); err != nil {
			return nil, fmt.Errorf("persist role: %w", err)
		}
	}
	return role, nil
}

// DeleteRole 删除角色及其触发模式和全部记忆
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	if err := e.graph.DeleteRole(roleID); err != nil {
		return err
	}
	e.registry.Unregister(roleID)
	e.store.ClearForRole(roleID)

	if e.persister != nil {
		if err := e.persister.DeleteTriggersByRole(ctx, roleID); err != nil {
			return fmt.Errorf("persist trigger delete: %w", err)
		}
		if err := e.persister.DeleteMemoriesByRole(ctx, roleID); err != nil {
			return fmt.Errorf("persist memory delete: %w", err)
		}
		if err := e.persister.DeleteRole(ctx, roleID); err != nil {
			return fmt.Errorf("persist role delete: %w", err)
		}
	}
	return nil
}

// Tones 返回内置语气档案
func (e *Engine) Tones() map[string]ToneProfile {
	return ToneProfiles()
}

// ============================================================================
// 触发模式
// ============================================================================

// AddTrigger 为角色追加自定义触发模式
func (e *Engine) AddTrigger(ctx context.Context, roleID, pattern, description string, priority int, isRegex bool) (*model.TriggerPattern, error) {
	if !e.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	p, err := e.registry.AddCustom(roleID, pattern, description, priority, isRegex)
	if err != nil {
		return nil, err
	}
	if e.persister != nil {
		if err := e.persister.SaveTrigger(ctx, p); err != nil {
			return nil, fmt.Errorf("persist trigger: %w", err)
		}
	}
	return p, nil
}

// RemoveTrigger 移除角色的自定义触发模式
func (e *Engine) RemoveTrigger(ctx context.Context, roleID, pattern string) bool {
	var removedID string
	for _, p := range e.registry.Triggers(roleID) {
		if p.Source == model.TriggerSourceCustom && p.Pattern == pattern {
			removedID = p.ID
			break
		}
	}
	if !e.registry.RemoveCustom(roleID, pattern) {
		return false
	}
	if e.persister != nil && removedID != "" {
		if err := e.persister.DeleteTrigger(ctx, removedID); err != nil {
			e.logger.WithError(err).Warn("persist trigger delete failed", "trigger_id", removedID)
		}
	}
	return true
}

// ListTriggers 列出角色的触发模式
func (e *Engine) ListTriggers(roleID string) ([]model.TriggerPattern, error) {
	if !e.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	return e.registry.Triggers(roleID), nil
}

// SetTriggerEnabled 启用/禁用触发模式
//
// 自定义模式的启用状态会被持久化，派生模式只改内存状态。
func (e *Engine) SetTriggerEnabled(ctx context.Context, roleID, patternID string, enabled bool) bool {
	if !e.registry.SetEnabled(roleID, patternID, enabled) {
		return false
	}
	if e.persister != nil {
		for _, p := range e.registry.Triggers(roleID) {
			if p.ID == patternID && p.Source == model.TriggerSourceCustom {
				if err := e.persister.SaveTrigger(ctx, &p); err != nil {
					e.logger.WithError(err).Warn("persist trigger failed", "trigger_id", patternID)
				}
				break
			}
		}
	}
	return true
}

// ScoreQuery 对查询做一次打分（诊断用，不涉及会话）
func (e *Engine) ScoreQuery(query string) []RoleScore {
	return e.scorer.Score(query)
}

// ============================================================================
// 记忆
// ============================================================================

// Remember 显式写入一条记忆
//
// 内容会被向量化以支持语义检索；向量化失败降级为无向量存储
// （该条记忆只出现在列表，不参与检索）。
func (e *Engine) Remember(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	if m.Content == "" {
		return nil, fmt.Errorf("memory content is required")
	}
	if len(m.Embedding) == 0 {
		if vec, err := e.embedder.Embed(ctx, m.Content); err != nil {
			e.logger.WithError(err).Warn("embed memory failed, storing without vector", "role_id", m.RoleID)
		} else {
			m.Embedding = vec
		}
	}
	if err := e.store.Store(m); err != nil {
		return nil, err
	}
	if e.persister != nil {
		if err := e.persister.SaveMemory(ctx, m); err != nil {
			return nil, fmt.Errorf("persist memory: %w", err)
		}
	}
	return m, nil
}

// SearchMemories 语义检索角色可见的记忆
func (e *Engine) SearchMemories(ctx context.Context, roleID, query string, limit int, filter model.MemoryQuery) ([]SearchResult, error) {
	if !e.graph.HasRole(roleID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	return e.searcher.Search(ctx, roleID, query, limit, filter)
}

// ListMemories 列出角色可见的记忆
func (e *Engine) ListMemories(roleID string, query model.MemoryQuery) ([]*model.Memory, error) {
	return e.store.List(roleID, query)
}

// GetMemory 按 ID 获取记忆
func (e *Engine) GetMemory(memoryID string) (*model.Memory, error) {
	return e.store.Get(memoryID)
}

// ShareMemory 把记忆共享给目标角色，返回失败的目标列表
func (e *Engine) ShareMemory(ctx context.Context, memoryID string, targets []string) ([]string, error) {
	failed, err := e.store.Share(memoryID, targets)
	if err != nil {
		return failed, err
	}
	if e.persister != nil {
		m, getErr := e.store.Get(memoryID)
		if getErr == nil {
			if perr := e.persister.SaveMemory(ctx, m); perr != nil {
				return failed, fmt.Errorf("persist memory: %w", perr)
			}
		}
	}
	return failed, nil
}

// DeleteMemory 删除一条记忆
func (e *Engine) DeleteMemory(ctx context.Context, memoryID string) error {
	if err := e.store.Delete(memoryID); err != nil {
		return err
	}
	if e.persister != nil {
		if err := e.persister.DeleteMemory(ctx, memoryID); err != nil {
			return fmt.Errorf("persist memory delete: %w", err)
		}
	}
	return nil
}

// ClearMemories 清空角色的全部记忆，返回删除条数
func (e *Engine) ClearMemories(ctx context.Context, roleID string) (int, error) {
	if !e.graph.HasRole(roleID) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}
	removed := e.store.ClearForRole(roleID)
	if e.persister != nil {
		if err := e.persister.DeleteMemoriesByRole(ctx, roleID); err != nil {
			return removed, fmt.Errorf("persist memory delete: %w", err)
		}
	}
	return removed, nil
}

// MemoryStats 返回角色的记忆统计
func (e *Engine) MemoryStats(roleID string) (*model.MemoryStats, error) {
	return e.store.Stats(roleID)
}

// ============================================================================
// 维护
// ============================================================================

// StartMaintenance 启动后台清理循环，ctx 取消时退出
func (e *Engine) StartMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if swept := e.store.Sweep(now); swept > 0 {
					e.logger.Info("swept expired memories", "count", swept)
				}
				if e.persister != nil {
					if _, err := e.persister.DeleteExpiredMemories(ctx, now); err != nil {
						e.logger.WithError(err).Warn("prune expired memories from storage failed")
					}
				}
			}
		}
	}()
}

// Sweep 立即执行一次过期清理，返回清理条数
func (e *Engine) Sweep() int {
	return e.store.Sweep(time.Now())
}
