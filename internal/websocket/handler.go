// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/service"
	pkgJwt "bae-recipe-server/pkg/jwt"
	"bae-recipe-server/pkg/response"
	"bae-recipe-server/pkg/util"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	// 读缓冲区大小
	ReadBufferSize: 1024,
	// 写缓冲区大小
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionStore 会话和历史消息的持久化接口
// 由 service.SessionService 实现
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, userID int64) (*model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	SetSessionTask(ctx context.Context, sessionID, taskID string) error
	AddMessageToHistory(ctx context.Context, sessionID, messageType, content string, metadata map[string]interface{}) (*model.SessionMessage, error)
	GetSessionMessages(ctx context.Context, sessionID string) ([]model.SessionMessage, error)
}

// TaskQueue 生成任务队列接口
// 由 queue.Producer 实现
type TaskQueue interface {
	Enqueue(ctx context.Context, sessionID string, userID int64, url string, params map[string]interface{}) (string, error)
	UpdateTaskStatus(ctx context.Context, taskID, status, errMsg string) (bool, error)
	CancelTask(ctx context.Context, taskID string) (bool, error)
}

// RecipePersister 生成结果落库接口
// 由 service.RecipeService 实现
type RecipePersister interface {
	CreateFromGeneration(ctx context.Context, userID int64, generated *service.GeneratedRecipe) (*model.Recipe, error)
}

// UserPrefs 用户偏好接口
// 连接没有携带生成参数时，从用户资料构造默认参数
type UserPrefs interface {
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	GenerationParams(user *model.User) map[string]interface{}
}

// ActiveSessionCache 用户活跃会话的缓存接口
// 由 cache.RedisCache 实现
type ActiveSessionCache interface {
	SetUserActiveSession(ctx context.Context, userID int64, sessionID string) error
	ClearUserActiveSession(ctx context.Context, userID int64) error
}

// Handler 处理 WebSocket 连接
type Handler struct {
	registry  *Registry
	sessions  SessionStore
	queue     TaskQueue
	recipes   RecipePersister
	users     UserPrefs
	cache     ActiveSessionCache
	jwtSecret string
}

// NewHandler 创建 WebSocket Handler
func NewHandler(
	registry *Registry,
	sessions SessionStore,
	queue TaskQueue,
	recipes RecipePersister,
	users UserPrefs,
	activeCache ActiveSessionCache,
	jwtSecret string,
) *Handler {
	return &Handler{
		registry:  registry,
		sessions:  sessions,
		queue:     queue,
		recipes:   recipes,
		users:     users,
		cache:     activeCache,
		jwtSecret: jwtSecret,
	}
}

// inboundMessage 连接上收到的原始消息
type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	SessionID string          `json:"session_id"`
}

// HandleClientWS 处理客户端 WebSocket 连接
// 路由: GET /ws/recipe-gen
// 参数（均为 query parameter）:
//   - token: JWT token，必填
//   - session_id: 要恢复的会话ID，不传则创建新会话
//   - url: 来源视频 URL，新会话必填
//   - recipe_params: 生成参数的 JSON，可选，缺省时取用户偏好
//
// 认证和会话校验在升级之后进行，失败通过关闭帧（1008）告知客户端
func (h *Handler) HandleClientWS(c *gin.Context) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	wc := newWSConn(raw)

	ctx := context.Background()

	// 验证 JWT token
	token := c.Query("token")
	if token == "" {
		wc.CloseWith(websocket.ClosePolicyViolation, "authentication token required")
		return
	}
	claims, err := pkgJwt.ParseUserToken(token, h.jwtSecret)
	if err != nil {
		wc.CloseWith(websocket.ClosePolicyViolation, "invalid token")
		return
	}
	userID := claims.UserID

	// 解析生成参数
	params, ok := h.resolveParams(ctx, wc, userID, c.Query("recipe_params"))
	if !ok {
		return
	}

	// 解析或创建会话
	videoURL := strings.TrimSpace(c.Query("url"))
	session, fresh, ok := h.resolveSession(ctx, wc, c.Query("session_id"), userID, videoURL)
	if !ok {
		return
	}
	sessionID := session.SessionID
	// 终态会话只能查看历史，不发起任务，也不算作用户的活跃会话
	terminal := model.IsTerminalSessionStatus(session.Status)

	// 注册连接
	connectionID := util.GenerateUUID()
	h.registry.Register(connectionID, sessionID, wc)

	if h.cache != nil && !terminal {
		if err := h.cache.SetUserActiveSession(ctx, userID, sessionID); err != nil {
			log.Printf("Failed to cache active session: %v", err)
		}
	}

	// 无论连接如何结束，清理都必须完整执行
	// 清理中的失败只记录，不向调用方传播
	defer func() {
		var issues []string
		h.registry.Unregister(connectionID)
		if _, err := h.sessions.AddMessageToHistory(ctx, sessionID, model.MessageTypeSystemResponse, "接続が切断されました。", nil); err != nil {
			issues = append(issues, "append disconnect history: "+err.Error())
		}
		if h.cache != nil && !terminal {
			if err := h.cache.ClearUserActiveSession(ctx, userID); err != nil {
				issues = append(issues, "clear active session: "+err.Error())
			}
		}
		if err := wc.CloseWith(websocket.CloseNormalClosure, "session closed"); err != nil {
			issues = append(issues, "close connection: "+err.Error())
		}
		if len(issues) > 0 {
			log.Printf("Connection teardown finished with issues: connectionID=%s, %s",
				connectionID, strings.Join(issues, "; "))
		}
	}()

	// 重连已有会话时，先把历史回放给这一个连接（不广播）
	if !fresh {
		h.replayHistory(ctx, connectionID, sessionID)
	}

	// 通知客户端连接就绪
	h.registry.SendTo(connectionID, NewMessage(TypeConnectionEstablished, &ConnectionEstablishedData{
		SessionID:    sessionID,
		ConnectionID: connectionID,
		TaskID:       session.TaskID,
		Resumed:      !fresh,
	}, sessionID))

	log.Printf("Client WebSocket connected: userID=%d, sessionID=%s, connectionID=%s", userID, sessionID, connectionID)

	// 新会话在连接就绪后投递生成任务
	// 只有新会话且尚未绑定任务时才投递，保证一个会话至多入队一次
	taskID := session.TaskID
	if fresh && taskID == "" {
		taskID = h.enqueueTask(ctx, connectionID, sessionID, userID, videoURL, params)
	}

	// 消息循环
	for {
		data, err := wc.ReadMessage()
		if err != nil {
			log.Printf("Client connection closed: connectionID=%s, %v", connectionID, err)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// 格式错误是可恢复的：报错但保持连接
			h.registry.SendTo(connectionID, NewMessage(TypeError, &ErrorData{
				Code:        response.CodeBadRequest,
				Message:     "消息格式错误",
				Recoverable: true,
			}, sessionID))
			continue
		}

		switch ParseMessageType(msg.Type) {
		case TypePing:
			h.registry.SendTo(connectionID, NewMessage(TypePing, nil, sessionID))

		case TypeUserInput:
			h.handleUserInput(ctx, connectionID, sessionID, msg.Data)

		case TypeRetry:
			// 仅在上一次投递失败（会话未绑定任务）时允许重试
			if terminal {
				h.registry.SendTo(connectionID, NewMessage(TypeError, &ErrorData{
					Code:        response.CodeBadRequest,
					Message:     "会话已结束，无法发起任务",
					Recoverable: true,
				}, sessionID))
				continue
			}
			if taskID != "" {
				h.registry.SendTo(connectionID, NewMessage(TypeError, &ErrorData{
					Code:        response.CodeBadRequest,
					Message:     "任务已在队列中",
					Recoverable: true,
				}, sessionID))
				continue
			}
			taskID = h.enqueueTask(ctx, connectionID, sessionID, userID, videoURL, params)

		default:
			// 未识别的类型不拒绝，原样转入历史
			h.forwardToHistory(ctx, sessionID, &msg)
		}
	}
}

// resolveParams 解析生成参数
// recipe_params 非法时关闭连接（1008）并返回 false
func (h *Handler) resolveParams(ctx context.Context, wc *wsConn, userID int64, rawParams string) (map[string]interface{}, bool) {
	if rawParams != "" {
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
			wc.CloseWith(websocket.ClosePolicyViolation, "invalid recipe_params")
			return nil, false
		}
		return params, true
	}

	// 未指定参数时取用户偏好
	user, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		log.Printf("Failed to load user profile: userID=%d, %v", userID, err)
		wc.CloseWith(websocket.CloseInternalServerErr, "failed to load user profile")
		return nil, false
	}
	if user == nil {
		wc.CloseWith(websocket.ClosePolicyViolation, "unknown user")
		return nil, false
	}
	return h.users.GenerationParams(user), true
}

// resolveSession 解析或创建会话
// 返回的 bool 第二项表示会话是否为本次连接新建
// 失败时已经关闭连接，返回 ok=false
func (h *Handler) resolveSession(ctx context.Context, wc *wsConn, sessionID string, userID int64, videoURL string) (*model.Session, bool, bool) {
	if sessionID != "" {
		// 恢复已有会话
		session, err := h.sessions.GetSession(ctx, sessionID)
		if err != nil {
			wc.CloseWith(websocket.CloseInternalServerErr, "failed to load session")
			return nil, false, false
		}
		if session == nil {
			wc.CloseWith(websocket.ClosePolicyViolation, "unknown session")
			return nil, false, false
		}
		// 已结束的会话允许重连查看历史，只是不再发起任务
		return session, false, true
	}

	// 新会话必须携带来源 URL
	if videoURL == "" {
		wc.CloseWith(websocket.ClosePolicyViolation, "url is required")
		return nil, false, false
	}

	session, err := h.sessions.CreateSession(ctx, "", userID)
	if err != nil {
		log.Printf("Failed to create session: %v", err)
		wc.CloseWith(websocket.CloseInternalServerErr, "failed to create session")
		return nil, false, false
	}
	return session, true, true
}

// replayHistory 将会话历史回放给单个连接
// 回放失败不致命：客户端仍然能收到后续的实时消息
func (h *Handler) replayHistory(ctx context.Context, connectionID, sessionID string) {
	messages, err := h.sessions.GetSessionMessages(ctx, sessionID)
	if err != nil {
		log.Printf("Failed to load session history: sessionID=%s, %v", sessionID, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	history := make([]HistoryMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, HistoryMessage{
			MessageID: m.MessageID,
			Type:      m.Type,
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.registry.SendTo(connectionID, NewMessage(TypeHistory, &HistoryData{
		Messages: history,
		Count:    len(history),
	}, sessionID))
}

// enqueueTask 投递生成任务并绑定到会话
// 投递失败是可恢复的：连接保持，客户端可以发送 retry 重试
// 返回任务ID，失败时返回空串
func (h *Handler) enqueueTask(ctx context.Context, connectionID, sessionID string, userID int64, videoURL string, params map[string]interface{}) string {
	taskID, err := h.queue.Enqueue(ctx, sessionID, userID, videoURL, params)
	if err != nil {
		log.Printf("Failed to enqueue task: sessionID=%s, %v", sessionID, err)
		h.registry.SendTo(connectionID, NewMessage(TypeError, &ErrorData{
			Code:        response.CodeEnqueueFailed,
			Message:     "任务投递失败，请重试",
			Recoverable: true,
		}, sessionID))
		return ""
	}

	if err := h.sessions.SetSessionTask(ctx, sessionID, taskID); err != nil {
		log.Printf("Failed to bind task to session: sessionID=%s, taskID=%s, %v", sessionID, taskID, err)
	}

	// 入队记入历史并广播
	content := "レシピ生成タスクを受け付けました"
	metadata := map[string]interface{}{"task_id": taskID}
	if _, err := h.sessions.AddMessageToHistory(ctx, sessionID, model.MessageTypeSystemResponse, content, metadata); err != nil {
		log.Printf("Failed to append history: sessionID=%s, %v", sessionID, err)
	}
	h.registry.Send(sessionID, NewMessage(TypeSystemResponse, map[string]interface{}{
		"content": content,
		"task_id": taskID,
	}, sessionID))

	return taskID
}

// forwardToHistory 将未识别类型的消息按字面类型原样记入历史
// 协议只拒绝格式错误的 JSON，不拒绝未知的消息类型
func (h *Handler) forwardToHistory(ctx context.Context, sessionID string, msg *inboundMessage) {
	content := ""
	if len(msg.Data) > 0 {
		content = string(msg.Data)
	}
	if _, err := h.sessions.AddMessageToHistory(ctx, sessionID, msg.Type, content, nil); err != nil {
		log.Printf("Failed to append history: sessionID=%s, %v", sessionID, err)
	}
}

// handleUserInput 处理用户输入
// 记入历史并回执；生成过程中用户输入不影响任务执行
func (h *Handler) handleUserInput(ctx context.Context, connectionID, sessionID string, data json.RawMessage) {
	var input UserInputData
	if err := json.Unmarshal(data, &input); err != nil || input.Content == "" {
		h.registry.SendTo(connectionID, NewMessage(TypeError, &ErrorData{
			Code:        response.CodeBadRequest,
			Message:     "消息内容不能为空",
			Recoverable: true,
		}, sessionID))
		return
	}

	if _, err := h.sessions.AddMessageToHistory(ctx, sessionID, model.MessageTypeUserInput, input.Content, nil); err != nil {
		log.Printf("Failed to append history: sessionID=%s, %v", sessionID, err)
	}

	h.registry.SendTo(connectionID, NewMessage(TypeSystemResponse, map[string]interface{}{
		"content": "メッセージを受け付けました",
	}, sessionID))
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不走认证中间件（token 在 query 中验证）
	ws := r.Group("/ws")
	{
		// 客户端连接
		ws.GET("/recipe-gen", h.HandleClientWS)
		// 生成 Worker 连接
		ws.GET("/recipe-gen/worker", h.HandleWorkerWS)
	}
}
