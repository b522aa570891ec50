package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/service"
	pkgJwt "bae-recipe-server/pkg/jwt"
	"bae-recipe-server/pkg/util"
)

const testSecret = "test-secret-key-0123456789abcdef"

// ==================== 依赖的内存实现 ====================

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	messages map[string][]model.SessionMessage
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*model.Session),
		messages: make(map[string][]model.SessionMessage),
	}
}

func (s *fakeSessionStore) CreateSession(ctx context.Context, sessionID string, userID int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		sessionID = util.GenerateUUID()
	}
	session := &model.Session{
		SessionID: sessionID,
		Status:    model.SessionStatusActive,
	}
	if userID > 0 {
		session.UserID = util.Int64Ptr(userID)
	}
	s.sessions[sessionID] = session
	return copySession(session), nil
}

func (s *fakeSessionStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

func (s *fakeSessionStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return true, nil
}

func (s *fakeSessionStore) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		session.Status = status
	}
	return nil
}

func (s *fakeSessionStore) SetSessionTask(ctx context.Context, sessionID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		session.TaskID = taskID
	}
	return nil
}

func (s *fakeSessionStore) AddMessageToHistory(ctx context.Context, sessionID, messageType, content string, metadata map[string]interface{}) (*model.SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := model.SessionMessage{
		MessageID: util.GenerateUUID(),
		SessionID: sessionID,
		Type:      messageType,
		Content:   content,
		Metadata:  model.JSONMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], message)
	return &message, nil
}

func (s *fakeSessionStore) GetSessionMessages(ctx context.Context, sessionID string) ([]model.SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SessionMessage(nil), s.messages[sessionID]...), nil
}

func (s *fakeSessionStore) seed(session *model.Session, messages ...model.SessionMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = session
	s.messages[session.SessionID] = messages
}

func (s *fakeSessionStore) get(sessionID string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return copySession(session)
}

func (s *fakeSessionStore) historyLen(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[sessionID])
}

func (s *fakeSessionStore) lastMessage(sessionID string) *model.SessionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.messages[sessionID]
	if len(messages) == 0 {
		return nil
	}
	m := messages[len(messages)-1]
	return &m
}

func copySession(s *model.Session) *model.Session {
	c := *s
	return &c
}

type fakeTaskQueue struct {
	mu       sync.Mutex
	attempts int
	failnext int
	statuses map[string]string
}

func newFakeTaskQueue() *fakeTaskQueue {
	return &fakeTaskQueue{statuses: make(map[string]string)}
}

func (q *fakeTaskQueue) Enqueue(ctx context.Context, sessionID string, userID int64, url string, params map[string]interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts++
	if q.failnextLocked() {
		return "", errors.New("redis unavailable")
	}
	taskID := fmt.Sprintf("task-%d", q.attempts)
	q.statuses[taskID] = "queued"
	return taskID, nil
}

func (q *fakeTaskQueue) failnextLocked() bool {
	if q.failnext > 0 {
		q.failnext--
		return true
	}
	return false
}

func (q *fakeTaskQueue) UpdateTaskStatus(ctx context.Context, taskID, status, errMsg string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[taskID] = status
	return true, nil
}

func (q *fakeTaskQueue) CancelTask(ctx context.Context, taskID string) (bool, error) {
	return q.UpdateTaskStatus(ctx, taskID, "cancelled", "")
}

func (q *fakeTaskQueue) attemptCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempts
}

func (q *fakeTaskQueue) status(taskID string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statuses[taskID]
}

type fakeRecipePersister struct {
	mu      sync.Mutex
	created []*service.GeneratedRecipe
	userIDs []int64
}

func (p *fakeRecipePersister) CreateFromGeneration(ctx context.Context, userID int64, generated *service.GeneratedRecipe) (*model.Recipe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, generated)
	p.userIDs = append(p.userIDs, userID)
	return &model.Recipe{ID: int64(len(p.created)), Name: generated.Name}, nil
}

func (p *fakeRecipePersister) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

type fakeUserPrefs struct {
	mu         sync.Mutex
	profileErr error
}

func (p *fakeUserPrefs) failProfile(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileErr = err
}

func (p *fakeUserPrefs) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return &model.User{
		ID:          userID,
		Username:    "alice",
		ServingSize: 2,
		Saltiness:   model.PreferenceNormal,
		Sweetness:   model.PreferenceNormal,
		Spiciness:   model.PreferenceLow,
	}, nil
}

func (p *fakeUserPrefs) GenerationParams(user *model.User) map[string]interface{} {
	return map[string]interface{}{
		"peopleCount": user.ServingSize,
		"saltiness":   user.Saltiness,
	}
}

type fakeActiveCache struct {
	mu     sync.Mutex
	active map[int64]string
}

func newFakeActiveCache() *fakeActiveCache {
	return &fakeActiveCache{active: make(map[int64]string)}
}

func (c *fakeActiveCache) SetUserActiveSession(ctx context.Context, userID int64, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[userID] = sessionID
	return nil
}

func (c *fakeActiveCache) ClearUserActiveSession(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, userID)
	return nil
}

// ==================== 测试环境 ====================

type testEnv struct {
	server   *httptest.Server
	registry *Registry
	store    *fakeSessionStore
	queue    *fakeTaskQueue
	recipes  *fakeRecipePersister
	prefs    *fakeUserPrefs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		registry: NewRegistry(),
		store:    newFakeSessionStore(),
		queue:    newFakeTaskQueue(),
		recipes:  &fakeRecipePersister{},
		prefs:    &fakeUserPrefs{},
	}

	h := NewHandler(env.registry, env.store, env.queue, env.recipes,
		env.prefs, newFakeActiveCache(), testSecret)

	router := gin.New()
	h.RegisterRoutes(router)

	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) dial(t *testing.T, path string) *gws.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + path
	conn, _, err := gws.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func accessToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := pkgJwt.NewJWTService(testSecret, time.Hour, time.Hour).
		GenerateAccessToken(userID, "alice")
	require.NoError(t, err)
	return token
}

func readEnvelope(t *testing.T, conn *gws.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func expectClose(t *testing.T, conn *gws.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	err := conn.ReadJSON(&msg)
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, code), "expected close code %d, got %v", code, err)
}

func dataField(msg *Message, key string) interface{} {
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	return data[key]
}

// ==================== 客户端连接 ====================

func TestClientConnectFreshSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	// 新会话：先收到 connection_established
	established := readEnvelope(t, conn)
	require.Equal(t, TypeConnectionEstablished, established.Type)
	sessionID := dataField(established, "session_id").(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, false, dataField(established, "resumed"))

	// 然后是任务入队的广播
	enqueued := readEnvelope(t, conn)
	assert.Equal(t, TypeSystemResponse, enqueued.Type)
	assert.Equal(t, "task-1", dataField(enqueued, "task_id"))

	// 任务只投递一次并绑定到会话
	assert.Equal(t, 1, env.queue.attemptCount())
	session := env.store.get(sessionID)
	require.NotNil(t, session)
	assert.Equal(t, "task-1", session.TaskID)
	assert.Equal(t, model.SessionStatusActive, session.Status)
	assert.Equal(t, 1, env.store.historyLen(sessionID))
}

func TestClientConnectMissingToken(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?url=https://example.com/v/1")
	expectClose(t, conn, gws.ClosePolicyViolation)
}

func TestClientConnectInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token=not-a-jwt&url=https://example.com/v/1")
	expectClose(t, conn, gws.ClosePolicyViolation)
	assert.Zero(t, env.queue.attemptCount())
}

func TestClientConnectMissingURL(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1))
	expectClose(t, conn, gws.ClosePolicyViolation)
}

func TestClientConnectUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&session_id="+util.GenerateUUID())
	expectClose(t, conn, gws.ClosePolicyViolation)
}

func TestClientReconnectEndedSessionViewsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-done",
		UserID:    util.Int64Ptr(1),
		Status:    model.SessionStatusCompleted,
	},
		model.SessionMessage{MessageID: "m1", SessionID: "sess-done", Type: model.MessageTypeSystemResponse, Content: "完了", CreatedAt: time.Now().UTC()},
	)

	// 已结束的会话允许重连查看历史
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&session_id=sess-done")

	history := readEnvelope(t, conn)
	require.Equal(t, TypeHistory, history.Type)
	assert.Equal(t, float64(1), dataField(history, "count"))

	established := readEnvelope(t, conn)
	require.Equal(t, TypeConnectionEstablished, established.Type)
	assert.Equal(t, true, dataField(established, "resumed"))

	// 但不能再发起任务
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "retry"}))
	rejected := readEnvelope(t, conn)
	require.Equal(t, TypeError, rejected.Type)
	assert.Equal(t, true, dataField(rejected, "recoverable"))
	assert.Zero(t, env.queue.attemptCount())
}

func TestClientConnectProfileLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prefs.failProfile(errors.New("db down"))

	// token 合法但用户资料读取失败，按内部错误关闭而不是认证失败
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")
	expectClose(t, conn, gws.CloseInternalServerErr)
	assert.Zero(t, env.queue.attemptCount())
}

func TestClientReconnectReplaysHistory(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-1",
		UserID:    util.Int64Ptr(1),
		Status:    model.SessionStatusActive,
		TaskID:    "task-9",
	},
		model.SessionMessage{MessageID: "m1", SessionID: "sess-1", Type: model.MessageTypeSystemResponse, Content: "受付", CreatedAt: time.Now().UTC()},
		model.SessionMessage{MessageID: "m2", SessionID: "sess-1", Type: model.MessageTypeTaskProgress, Content: "解析中", CreatedAt: time.Now().UTC()},
	)

	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&session_id=sess-1")

	// 历史先于 connection_established，且只发给本连接
	history := readEnvelope(t, conn)
	require.Equal(t, MessageType("session_history"), history.Type)
	assert.Equal(t, float64(2), dataField(history, "count"))

	established := readEnvelope(t, conn)
	require.Equal(t, TypeConnectionEstablished, established.Type)
	assert.Equal(t, true, dataField(established, "resumed"))
	assert.Equal(t, "task-9", dataField(established, "task_id"))

	// 已绑定任务的会话不会重复入队
	assert.Zero(t, env.queue.attemptCount())
}

func TestClientMalformedJSONIsRecoverable(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	readEnvelope(t, conn) // connection_established
	readEnvelope(t, conn) // 入队广播

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("{not json")))

	errMsg := readEnvelope(t, conn)
	require.Equal(t, TypeError, errMsg.Type)
	assert.Equal(t, true, dataField(errMsg, "recoverable"))

	// 连接保持可用
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	pong := readEnvelope(t, conn)
	assert.Equal(t, TypePing, pong.Type)
}

func TestClientUnknownTypeForwardedToHistory(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	established := readEnvelope(t, conn)
	sessionID := dataField(established, "session_id").(string)
	readEnvelope(t, conn) // 入队广播

	// 未知类型不报错，按字面类型转入历史
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "teleport",
		"data": map[string]string{"destination": "kitchen"},
	}))

	require.Eventually(t, func() bool {
		return env.store.historyLen(sessionID) == 2
	}, 2*time.Second, 20*time.Millisecond)
	last := env.store.lastMessage(sessionID)
	require.NotNil(t, last)
	assert.Equal(t, "teleport", last.Type)
	assert.Contains(t, last.Content, "kitchen")

	// 连接保持可用
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	pong := readEnvelope(t, conn)
	assert.Equal(t, TypePing, pong.Type)
}

func TestClientDisconnectAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	established := readEnvelope(t, conn)
	sessionID := dataField(established, "session_id").(string)
	readEnvelope(t, conn) // 入队广播

	require.NoError(t, conn.Close())

	// 断开时写入一条切断记录，重连回放时可见
	require.Eventually(t, func() bool {
		return env.store.historyLen(sessionID) == 2
	}, 2*time.Second, 20*time.Millisecond)
	last := env.store.lastMessage(sessionID)
	require.NotNil(t, last)
	assert.Equal(t, model.MessageTypeSystemResponse, last.Type)
	assert.Equal(t, "接続が切断されました。", last.Content)
}

func TestClientUserInputAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	established := readEnvelope(t, conn)
	sessionID := dataField(established, "session_id").(string)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "user_input",
		"data": map[string]string{"content": "辛さ控えめでお願いします"},
	}))

	ack := readEnvelope(t, conn)
	assert.Equal(t, TypeSystemResponse, ack.Type)

	// 入队广播 + 用户输入 = 2 条历史
	assert.Equal(t, 2, env.store.historyLen(sessionID))
}

func TestRetryAfterEnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.queue.failnext = 1

	conn := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&url=https://example.com/v/1")

	established := readEnvelope(t, conn)
	require.Equal(t, TypeConnectionEstablished, established.Type)
	sessionID := dataField(established, "session_id").(string)

	// 投递失败是可恢复错误，连接保持
	errMsg := readEnvelope(t, conn)
	require.Equal(t, TypeError, errMsg.Type)
	assert.Equal(t, float64(1402), dataField(errMsg, "code"))
	assert.Equal(t, true, dataField(errMsg, "recoverable"))
	assert.Empty(t, env.store.get(sessionID).TaskID)

	// 客户端发起重试，这次成功
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "retry"}))
	enqueued := readEnvelope(t, conn)
	assert.Equal(t, TypeSystemResponse, enqueued.Type)
	assert.Equal(t, 2, env.queue.attemptCount())
	assert.Equal(t, "task-2", env.store.get(sessionID).TaskID)

	// 已绑定任务后再重试被拒绝
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "retry"}))
	rejected := readEnvelope(t, conn)
	require.Equal(t, TypeError, rejected.Type)
	assert.Equal(t, 2, env.queue.attemptCount())
}

// ==================== Worker 连接 ====================

func TestWorkerMissingSessionID(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen/worker")
	expectClose(t, conn, gws.ClosePolicyViolation)
}

func TestWorkerUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "/ws/recipe-gen/worker?session_id=nope")
	expectClose(t, conn, gws.ClosePolicyViolation)
}

func TestWorkerProgressFanOut(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-1",
		UserID:    util.Int64Ptr(1),
		Status:    model.SessionStatusActive,
		TaskID:    "task-9",
	})

	client := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&session_id=sess-1")
	readEnvelope(t, client) // connection_established

	worker := env.dial(t, "/ws/recipe-gen/worker?session_id=sess-1")
	require.NoError(t, worker.WriteJSON(map[string]interface{}{
		"type": "task_progress",
		"data": map[string]interface{}{
			"task_id": "task-9",
			"step":    "transcribe",
			"percent": 40,
			"message": "動画を解析しています",
		},
	}))

	progress := readEnvelope(t, client)
	require.Equal(t, TypeTaskProgress, progress.Type)
	assert.Equal(t, "task-9", dataField(progress, "task_id"))
	assert.Equal(t, float64(40), dataField(progress, "percent"))

	// 进度同时落历史并同步任务状态镜像
	require.Eventually(t, func() bool {
		return env.store.historyLen("sess-1") == 1 && env.queue.status("task-9") == "processing"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerCompletionPersistsAndRemovesSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-1",
		UserID:    util.Int64Ptr(7),
		Status:    model.SessionStatusActive,
		TaskID:    "task-9",
	})

	// 没有任何客户端连接：广播无人接收但流程照常完成
	worker := env.dial(t, "/ws/recipe-gen/worker?session_id=sess-1")
	require.NoError(t, worker.WriteJSON(map[string]interface{}{
		"type": "task_completed",
		"data": map[string]interface{}{
			"task_id": "task-9",
			"recipe": map[string]interface{}{
				"name":  "豚の生姜焼き",
				"url":   "https://example.com/v/1",
				"genre": "和食",
				"ingredients": []map[string]string{
					{"name": "豚ロース", "amount": "200g"},
				},
				"steps": []string{"豚肉を焼く", "タレを絡める"},
			},
		},
	}))

	require.Eventually(t, func() bool {
		return env.recipes.createdCount() == 1 && env.store.get("sess-1") == nil
	}, 2*time.Second, 20*time.Millisecond)

	env.recipes.mu.Lock()
	defer env.recipes.mu.Unlock()
	assert.Equal(t, "豚の生姜焼き", env.recipes.created[0].Name)
	assert.Equal(t, int64(7), env.recipes.userIDs[0])
	assert.Equal(t, "completed", env.queue.status("task-9"))
}

func TestWorkerCompletionBroadcastsBeforeRemoval(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-1",
		UserID:    util.Int64Ptr(1),
		Status:    model.SessionStatusActive,
		TaskID:    "task-9",
	})

	client := env.dial(t, "/ws/recipe-gen?token="+accessToken(t, 1)+"&session_id=sess-1")
	readEnvelope(t, client)

	worker := env.dial(t, "/ws/recipe-gen/worker?session_id=sess-1")
	require.NoError(t, worker.WriteJSON(map[string]interface{}{
		"type": "task_completed",
		"data": map[string]interface{}{
			"task_id": "task-9",
			"recipe":  map[string]interface{}{"name": "親子丼", "steps": []string{"煮る"}},
		},
	}))

	// 客户端在会话消失前收到完成和终态通知
	completed := readEnvelope(t, client)
	require.Equal(t, TypeTaskCompleted, completed.Type)
	assert.Equal(t, float64(1), dataField(completed, "recipe_id"))

	done := readEnvelope(t, client)
	require.Equal(t, TypeAllTasksCompleted, done.Type)
	assert.Equal(t, "completed", dataField(done, "status"))

	require.Eventually(t, func() bool {
		return env.store.get("sess-1") == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerTaskFailedKeepSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed(&model.Session{
		SessionID: "sess-1",
		UserID:    util.Int64Ptr(1),
		Status:    model.SessionStatusActive,
		TaskID:    "task-9",
	})

	worker := env.dial(t, "/ws/recipe-gen/worker?session_id=sess-1")
	require.NoError(t, worker.WriteJSON(map[string]interface{}{
		"type": "task_failed",
		"data": map[string]interface{}{
			"task_id":      "task-9",
			"error":        "動画の取得に失敗しました",
			"keep_session": true,
		},
	}))

	// keep_session: 会话标记失败但保留，历史可继续查询
	require.Eventually(t, func() bool {
		session := env.store.get("sess-1")
		return session != nil && session.Status == model.SessionStatusFailed
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "failed", env.queue.status("task-9"))
	assert.Equal(t, 1, env.store.historyLen("sess-1"))
}
