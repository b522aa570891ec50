// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/queue"
	"bae-recipe-server/internal/service"
)

// workerTaskData Worker 上报消息的 data 结构
// 各类型只使用其中一部分字段
type workerTaskData struct {
	TaskID  string `json:"task_id"`
	Step    string `json:"step"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Error   string `json:"error"`

	// task_completed 时携带生成的菜谱
	Recipe *service.GeneratedRecipe `json:"recipe"`

	// 为 true 时会话在任务结束后保留，供客户端继续查看
	KeepSession bool `json:"keep_session"`
}

// HandleWorkerWS 处理生成 Worker 的 WebSocket 连接
// 路由: GET /ws/recipe-gen/worker
// 参数: session_id (query parameter) - 上报目标会话，必填
//
// Worker 连接不进注册表：它是消息的生产方，不接收广播
// 上报的消息先落历史，再尽力广播给会话下的客户端连接；
// 会话没有在线客户端时消息只落历史，不算失败
func (h *Handler) HandleWorkerWS(c *gin.Context) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade worker connection: %v", err)
		return
	}
	wc := newWSConn(raw)

	ctx := context.Background()

	sessionID := c.Query("session_id")
	if sessionID == "" {
		wc.CloseWith(websocket.ClosePolicyViolation, "session_id is required")
		return
	}

	session, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		wc.CloseWith(websocket.CloseInternalServerErr, "failed to load session")
		return
	}
	if session == nil {
		wc.CloseWith(websocket.ClosePolicyViolation, "unknown session")
		return
	}

	var userID int64
	if session.UserID != nil {
		userID = *session.UserID
	}

	defer func() {
		if err := wc.CloseWith(websocket.CloseNormalClosure, "worker disconnected"); err != nil {
			log.Printf("Worker teardown finished with issues: sessionID=%s, %v", sessionID, err)
		}
	}()

	log.Printf("Worker WebSocket connected: sessionID=%s", sessionID)

	for {
		data, err := wc.ReadMessage()
		if err != nil {
			log.Printf("Worker connection closed: sessionID=%s, %v", sessionID, err)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid worker message: sessionID=%s, %v", sessionID, err)
			continue
		}

		var task workerTaskData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				log.Printf("Invalid worker message data: sessionID=%s, %v", sessionID, err)
				continue
			}
		}

		switch ParseMessageType(msg.Type) {
		case TypeSystemResponse:
			h.relayToSession(ctx, sessionID, model.MessageTypeSystemResponse, task.Message,
				map[string]interface{}{"task_id": task.TaskID},
				NewMessage(TypeSystemResponse, map[string]interface{}{
					"content": task.Message,
					"task_id": task.TaskID,
				}, sessionID))

		case TypeTaskProgress:
			h.handleTaskProgress(ctx, sessionID, &task)

		case TypeTaskCompleted:
			h.handleTaskCompleted(ctx, sessionID, userID, &task)

		case TypeTaskFailed:
			h.handleTaskFailed(ctx, sessionID, &task)

		case TypeAllTasksCompleted:
			h.finishSession(ctx, sessionID, model.SessionStatusCompleted, task.KeepSession)

		default:
			log.Printf("Unsupported worker message type: sessionID=%s, type=%s", sessionID, msg.Type)
		}
	}
}

// relayToSession 把一条消息落历史并广播给会话下的客户端
func (h *Handler) relayToSession(ctx context.Context, sessionID, historyType, content string, metadata map[string]interface{}, msg *Message) {
	if _, err := h.sessions.AddMessageToHistory(ctx, sessionID, historyType, content, metadata); err != nil {
		log.Printf("Failed to append history: sessionID=%s, %v", sessionID, err)
	}
	h.registry.Send(sessionID, msg)
}

// handleTaskProgress 处理任务进度上报
func (h *Handler) handleTaskProgress(ctx context.Context, sessionID string, task *workerTaskData) {
	// 同步任务状态镜像为处理中
	if task.TaskID != "" {
		if _, err := h.queue.UpdateTaskStatus(ctx, task.TaskID, queue.TaskStatusProcessing, ""); err != nil {
			log.Printf("Failed to update task status: taskID=%s, %v", task.TaskID, err)
		}
	}

	h.relayToSession(ctx, sessionID, model.MessageTypeTaskProgress, task.Message,
		map[string]interface{}{
			"task_id": task.TaskID,
			"step":    task.Step,
			"percent": task.Percent,
		},
		NewMessage(TypeTaskProgress, &ProgressData{
			TaskID:  task.TaskID,
			Step:    task.Step,
			Percent: task.Percent,
			Message: task.Message,
		}, sessionID))
}

// handleTaskCompleted 处理任务完成上报
// 顺序：落库菜谱 → 落历史 → 广播完成 → 广播全部完成 → 结束会话
func (h *Handler) handleTaskCompleted(ctx context.Context, sessionID string, userID int64, task *workerTaskData) {
	var recipeID int64
	if task.Recipe != nil {
		recipe, err := h.recipes.CreateFromGeneration(ctx, userID, task.Recipe)
		if err != nil {
			// 落库失败降级为任务失败，客户端可以重新生成
			log.Printf("Failed to persist generated recipe: sessionID=%s, %v", sessionID, err)
			h.handleTaskFailed(ctx, sessionID, &workerTaskData{
				TaskID:      task.TaskID,
				Error:       "生成結果の保存に失敗しました",
				KeepSession: task.KeepSession,
			})
			return
		}
		recipeID = recipe.ID
	}

	if task.TaskID != "" {
		if _, err := h.queue.UpdateTaskStatus(ctx, task.TaskID, queue.TaskStatusCompleted, ""); err != nil {
			log.Printf("Failed to update task status: taskID=%s, %v", task.TaskID, err)
		}
	}

	var recipeMap map[string]interface{}
	if task.Recipe != nil {
		if data, err := json.Marshal(task.Recipe); err == nil {
			json.Unmarshal(data, &recipeMap)
		}
	}

	h.relayToSession(ctx, sessionID, model.MessageTypeTaskCompleted, "レシピが完成しました",
		map[string]interface{}{
			"task_id":   task.TaskID,
			"recipe_id": recipeID,
		},
		NewMessage(TypeTaskCompleted, &TaskResultData{
			TaskID:   task.TaskID,
			RecipeID: recipeID,
			Recipe:   recipeMap,
		}, sessionID))

	// 一个会话只有一个生成任务，任务完成即全部完成
	h.finishSession(ctx, sessionID, model.SessionStatusCompleted, task.KeepSession)
}

// handleTaskFailed 处理任务失败上报
func (h *Handler) handleTaskFailed(ctx context.Context, sessionID string, task *workerTaskData) {
	if task.TaskID != "" {
		if _, err := h.queue.UpdateTaskStatus(ctx, task.TaskID, queue.TaskStatusFailed, task.Error); err != nil {
			log.Printf("Failed to update task status: taskID=%s, %v", task.TaskID, err)
		}
	}

	h.relayToSession(ctx, sessionID, model.MessageTypeTaskFailed, task.Error,
		map[string]interface{}{"task_id": task.TaskID},
		NewMessage(TypeTaskFailed, &TaskFailedData{
			TaskID: task.TaskID,
			Error:  task.Error,
		}, sessionID))

	h.finishSession(ctx, sessionID, model.SessionStatusFailed, task.KeepSession)
}

// finishSession 结束会话
// 先广播 all_tasks_completed 再收尾，保证客户端在会话消失前收到终态通知；
// keepSession 为 true 时只标记状态，历史保留供后续查询
func (h *Handler) finishSession(ctx context.Context, sessionID, status string, keepSession bool) {
	h.registry.Send(sessionID, NewMessage(TypeAllTasksCompleted, map[string]interface{}{
		"status": status,
	}, sessionID))

	if err := h.sessions.UpdateSessionStatus(ctx, sessionID, status); err != nil {
		log.Printf("Failed to update session status: sessionID=%s, %v", sessionID, err)
	}

	if keepSession {
		return
	}

	// 重复结束时会话可能已被删除，deleted=false 不算错误
	deleted, err := h.sessions.DeleteSession(ctx, sessionID)
	if err != nil {
		log.Printf("Failed to delete session: sessionID=%s, %v", sessionID, err)
		return
	}
	if deleted {
		log.Printf("Session finished and removed: sessionID=%s, status=%s", sessionID, status)
	}
}
