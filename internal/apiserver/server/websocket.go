// Package server WebSocket 事件网关与流式问答
//
// 事件网关把角色切换事件实时推给前端：
//   - 配置了事件总线（Redis Streams）时按会话订阅总线，
//     多实例部署下任意实例的切换都能推到本实例的连接
//   - 无总线时降级为进程内广播（单实例模式）
//
// 流式问答在同一个 WebSocket 连接上完成一次问答：
// 客户端发送请求帧，服务端依次推送切换通知、回复分片和结果帧。
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"advisors-admin/internal/engine"
	"advisors-admin/internal/shared/eventbus"
	"advisors-admin/internal/shared/model"
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 当前允许所有来源，生产环境应限制。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// 写入/心跳超时
const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

// EventGateway WebSocket 切换事件网关
//
// 网关负责：
//   - 管理按会话索引的 WebSocket 连接
//   - 把引擎的切换事件发布到事件总线（配置时）
//   - 无总线时直接广播给本实例的连接
type EventGateway struct {
	engine   *engine.Engine
	eventBus eventbus.SwitchEventBus
	metrics  *Metrics

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]chan *eventbus.SwitchEvent
}

// NewEventGateway 创建事件网关并挂接引擎的切换监听
func NewEventGateway(eng *engine.Engine, eventBus eventbus.SwitchEventBus, metrics *Metrics) *EventGateway {
	g := &EventGateway{
		engine:   eng,
		eventBus: eventBus,
		metrics:  metrics,
		clients:  make(map[string]map[*websocket.Conn]chan *eventbus.SwitchEvent),
	}
	eng.OnSwitch(g.onSwitch)
	return g
}

// onSwitch 引擎切换监听器
//
// 监听器在会话锁内同步调用，总线发布放到独立 goroutine，
// 避免 Redis 往返阻塞路由决策。
func (g *EventGateway) onSwitch(sessionID string, ev model.SwitchEvent) {
	g.metrics.RecordSwitch(ev.Automatic)

	event := &eventbus.SwitchEvent{
		SessionID:  sessionID,
		Timestamp:  ev.Timestamp,
		FromRoleID: ev.FromRoleID,
		ToRoleID:   ev.ToRoleID,
		Reason:     ev.Reason,
		Automatic:  ev.Automatic,
	}

	if g.eventBus != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.eventBus.PublishSwitchEvent(ctx, sessionID, event); err != nil {
				log.Printf("publish switch event failed: %v", err)
			}
		}()
		return
	}

	g.broadcast(sessionID, event)
}

// broadcast 进程内广播切换事件
//
// 通过每连接的缓冲通道投递，写满即丢弃（慢消费者不阻塞路由）。
func (g *EventGateway) broadcast(sessionID string, event *eventbus.SwitchEvent) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ch := range g.clients[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// addClient 注册客户端连接，返回其事件通道
func (g *EventGateway) addClient(sessionID string, conn *websocket.Conn) chan *eventbus.SwitchEvent {
	ch := make(chan *eventbus.SwitchEvent, 16)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clients[sessionID] == nil {
		g.clients[sessionID] = make(map[*websocket.Conn]chan *eventbus.SwitchEvent)
	}
	g.clients[sessionID][conn] = ch
	return ch
}

// removeClient 移除客户端连接
func (g *EventGateway) removeClient(sessionID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if conns, ok := g.clients[sessionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(g.clients, sessionID)
		}
	}
}

// HandleSessionEvents 处理切换事件订阅连接
//
// 路由: GET /ws/sessions/{id}/events
//
// 查询参数：
//   - from_id: 起始事件 ID（可选，仅总线模式），用于断线重连恢复
//
// 推送消息格式：
//
//	切换事件：{"type": "switch", "data": {...}}
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *EventGateway) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := g.engine.GetSession(sessionID); err != nil {
		writeEngineError(w, err, http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	g.metrics.WSConnectionOpened()
	defer g.metrics.WSConnectionClosed()

	localCh := g.addClient(sessionID, conn)
	defer g.removeClient(sessionID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go g.readPump(conn, cancel)

	var eventCh <-chan *eventbus.SwitchEvent = localCh
	if g.eventBus != nil {
		// 总线模式：先回放历史，再订阅增量
		if fromID := r.URL.Query().Get("from_id"); fromID != "" {
			events, err := g.eventBus.GetSwitchEvents(ctx, sessionID, fromID, 100)
			if err != nil {
				log.Printf("replay switch events failed: %v", err)
			}
			for _, ev := range events {
				if !g.writeSwitchEvent(conn, ev) {
					return
				}
			}
		}
		busCh, err := g.eventBus.SubscribeSwitchEvents(ctx, sessionID)
		if err != nil {
			log.Printf("subscribe switch events failed, falling back to local broadcast: %v", err)
		} else {
			eventCh = busCh
		}
	}

	g.writePump(ctx, conn, eventCh)
}

// readPump 读取客户端消息（心跳），连接关闭时取消上下文
func (g *EventGateway) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var req map[string]interface{}
		if json.Unmarshal(msg, &req) == nil {
			if req["type"] == "ping" {
				conn.SetReadDeadline(time.Now().Add(wsPongWait))
				conn.WriteJSON(map[string]string{"type": "pong"})
			}
		}
	}
}

// writePump 向客户端推送切换事件
func (g *EventGateway) writePump(ctx context.Context, conn *websocket.Conn, eventCh <-chan *eventbus.SwitchEvent) {
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if !g.writeSwitchEvent(conn, event) {
				return
			}
		}
	}
}

// writeSwitchEvent 写一条切换事件帧，失败返回 false
func (g *EventGateway) writeSwitchEvent(conn *websocket.Conn, event *eventbus.SwitchEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(map[string]interface{}{
		"type": "switch",
		"data": event,
	}); err != nil {
		log.Printf("WebSocket write error: %v", err)
		return false
	}
	g.metrics.RecordWSMessage("out", "switch")
	return true
}

// ============================================================================
// 流式问答
// ============================================================================

// HandleProcessStream 流式处理一次问答
//
// 路由: GET /ws/process（WebSocket）
//
// 客户端发送一个请求帧（与 POST /api/v1/context/process 同构）：
//
//	{"session_id": "...", "query": "...", "role_id": "...", "custom_instructions": "..."}
//
// 服务端依次推送：
//
//	切换通知（仅发生切换时，先于首个分片）：{"type": "switch", "data": {...}}
//	回复分片：{"type": "chunk", "data": "..."}
//	结果帧：{"type": "done", "data": {...}}
//	错误帧：{"type": "error", "error": "..."}
func (h *Handler) HandleProcessStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.metrics.WSConnectionOpened()
	defer h.metrics.WSConnectionClosed()

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))

	var req processRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeStreamError(conn, "invalid request frame")
		return
	}
	h.metrics.RecordWSMessage("in", "process")
	if req.SessionID == "" || req.Query == "" {
		writeStreamError(conn, "session_id and query are required")
		return
	}

	ctx := r.Context()
	start := time.Now()

	// 先做路由决策，切换通知要在首个分片之前发出
	decision, err := h.engine.Route(req.SessionID, req.Query, req.RoleID)
	if err != nil {
		writeStreamError(conn, err.Error())
		return
	}
	if decision.Switched {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(map[string]interface{}{
			"type": "switch",
			"data": map[string]interface{}{
				"role_id": decision.RoleID,
				"reason":  decision.Reason,
			},
		}); err != nil {
			return
		}
		h.metrics.RecordWSMessage("out", "switch")
	}

	// 决策已生效，显式指定角色避免重复切换
	result, err := h.engine.ProcessQueryStream(ctx, req.SessionID, req.Query, engine.ProcessOptions{
		ForceRoleID:        decision.RoleID,
		CustomInstructions: req.CustomInstructions,
	}, func(chunk string) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if werr := conn.WriteJSON(map[string]string{
			"type": "chunk",
			"data": chunk,
		}); werr != nil {
			return werr
		}
		h.metrics.RecordWSMessage("out", "chunk")
		return nil
	})
	if err != nil {
		h.metrics.RecordQuery(decision.RoleID, "error", time.Since(start))
		writeStreamError(conn, err.Error())
		return
	}

	// 流式路径里切换发生在预路由阶段，结果帧回填切换信息
	result.ContextSwitched = decision.Switched
	if decision.Switched {
		result.SwitchReason = decision.Reason
	}

	h.metrics.RecordQuery(result.RoleID, "ok", time.Since(start))
	h.metrics.MemoriesStored.Inc()

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(map[string]interface{}{
		"type": "done",
		"data": result,
	}); err != nil {
		return
	}
	h.metrics.RecordWSMessage("out", "done")
}

// writeStreamError 写一条错误帧
func writeStreamError(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteJSON(map[string]string{"type": "error", "error": msg})
}
