// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"bae-recipe-server/internal/middleware"
	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/queue"
	"bae-recipe-server/internal/service"
	"bae-recipe-server/internal/websocket"
	"bae-recipe-server/pkg/response"
)

// SessionHandler 会话请求处理器
// 提供会话和生成任务的 REST 查询入口，实时消息走 WebSocket
type SessionHandler struct {
	sessionService *service.SessionService
	producer       *queue.Producer
	registry       *websocket.Registry
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(
	sessionService *service.SessionService,
	producer *queue.Producer,
	registry *websocket.Registry,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		producer:       producer,
		registry:       registry,
	}
}

// GetActiveSession 获取当前用户的活跃会话
// @Summary 当前活跃会话
// @Tags 会话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=model.Session}
// @Router /api/sessions/active [get]
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	userID := middleware.GetUserID(c)

	session, err := h.sessionService.GetActiveSession(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取会话失败")
		return
	}
	if session == nil {
		response.SessionNotFound(c)
		return
	}

	response.Success(c, gin.H{
		"session":   session,
		"connected": h.registry.IsSessionConnected(session.SessionID),
	})
}

// GetSession 获取指定会话及其历史
// @Summary 会话详情
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} response.Response{data=service.SessionHistory}
// @Router /api/sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessionID := c.Param("sessionId")

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		response.InternalError(c, "获取会话失败")
		return
	}
	// 会话不属于当前用户时同样返回不存在，不泄露他人会话
	if session == nil || session.UserID == nil || *session.UserID != userID {
		response.SessionNotFound(c)
		return
	}

	messages, err := h.sessionService.GetSessionMessages(c.Request.Context(), sessionID)
	if err != nil {
		response.InternalError(c, "获取会话历史失败")
		return
	}

	response.Success(c, service.SessionHistory{
		Session:  session,
		Messages: messages,
	})
}

// GetHistory 获取当前用户全部会话的历史
// @Summary 我的生成历史
// @Tags 会话
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]service.SessionHistory}
// @Router /api/sessions/history [get]
func (h *SessionHandler) GetHistory(c *gin.Context) {
	userID := middleware.GetUserID(c)

	histories, err := h.sessionService.GetUserHistory(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取历史失败")
		return
	}

	response.Success(c, histories)
}

// GetTaskStatus 查询生成任务状态
// @Summary 任务状态
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param taskId path string true "任务ID"
// @Success 200 {object} response.Response{data=queue.TaskStatusInfo}
// @Router /api/tasks/{taskId} [get]
func (h *SessionHandler) GetTaskStatus(c *gin.Context) {
	userID := middleware.GetUserID(c)
	taskID := c.Param("taskId")

	info, err := h.producer.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		response.InternalError(c, "查询任务状态失败")
		return
	}
	if info == nil || info.UserID != userID {
		response.TaskNotFound(c)
		return
	}

	response.Success(c, info)
}

// CancelTask 取消生成任务
// @Summary 取消任务
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param taskId path string true "任务ID"
// @Success 200 {object} response.Response
// @Router /api/tasks/{taskId}/cancel [post]
func (h *SessionHandler) CancelTask(c *gin.Context) {
	userID := middleware.GetUserID(c)
	taskID := c.Param("taskId")

	info, err := h.producer.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		response.InternalError(c, "查询任务状态失败")
		return
	}
	if info == nil || info.UserID != userID {
		response.TaskNotFound(c)
		return
	}

	ok, err := h.producer.CancelTask(c.Request.Context(), taskID)
	if err != nil {
		response.InternalError(c, "取消任务失败")
		return
	}
	if !ok {
		response.TaskNotFound(c)
		return
	}

	// 会话标记为已取消
	if info.SessionID != "" {
		h.sessionService.UpdateSessionStatus(c.Request.Context(), info.SessionID, model.SessionStatusCancelled)
	}

	response.SuccessWithMessage(c, "任务已取消", nil)
}

// DeleteSession 删除会话及其历史
// @Summary 删除会话
// @Tags 会话
// @Security Bearer
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 204
// @Router /api/sessions/{sessionId} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessionID := c.Param("sessionId")

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		response.InternalError(c, "获取会话失败")
		return
	}
	if session == nil || session.UserID == nil || *session.UserID != userID {
		response.SessionNotFound(c)
		return
	}

	deleted, err := h.sessionService.DeleteSession(c.Request.Context(), sessionID)
	if err != nil {
		response.InternalError(c, "删除会话失败")
		return
	}
	if !deleted {
		response.SessionNotFound(c)
		return
	}

	response.NoContent(c)
}
