// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"time"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/repository"
	"bae-recipe-server/pkg/util"
)

// 会话服务相关错误
var (
	ErrSessionNotFound = errors.New("会话不存在")
	ErrSessionEnded    = errors.New("会话已结束")
)

// SessionService 会话服务
// 维护菜谱生成会话的生命周期和仅追加的历史消息
type SessionService struct {
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
	}
}

// CreateSession 创建新会话
// sessionID 为空时生成新的 UUID；userID 为 0 表示匿名 Worker 创建
func (s *SessionService) CreateSession(ctx context.Context, sessionID string, userID int64) (*model.Session, error) {
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

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession 根据会话 ID 获取会话
// 未找到时返回 (nil, nil)
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessionRepo.GetBySessionID(ctx, sessionID)
}

// GetActiveSession 获取用户当前活跃的会话
func (s *SessionService) GetActiveSession(ctx context.Context, userID int64) (*model.Session, error) {
	return s.sessionRepo.GetActiveByUserID(ctx, userID)
}

// ListUserSessions 获取用户的全部会话
func (s *SessionService) ListUserSessions(ctx context.Context, userID int64) ([]model.Session, error) {
	return s.sessionRepo.ListByUserID(ctx, userID)
}

// UpdateSessionStatus 更新会话状态
// 进入终态时由 repository 填充 completed_at
func (s *SessionService) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	return s.sessionRepo.UpdateStatus(ctx, sessionID, status)
}

// SetSessionTask 绑定生成任务到会话
// 一个会话至多绑定一个任务；task_id 非空表示已经投递过
func (s *SessionService) SetSessionTask(ctx context.Context, sessionID, taskID string) error {
	return s.sessionRepo.UpdateTaskID(ctx, sessionID, taskID)
}

// DeleteSession 删除会话及其全部历史消息
// 返回会话是否存在；重复删除返回 (false, nil)
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// AddMessageToHistory 追加一条历史消息
// messageType 必须是 model 中定义的消息类型常量之一
func (s *SessionService) AddMessageToHistory(ctx context.Context, sessionID, messageType, content string, metadata map[string]interface{}) (*model.SessionMessage, error) {
	message := &model.SessionMessage{
		MessageID: util.GenerateUUID(),
		SessionID: sessionID,
		Type:      messageType,
		Content:   content,
		Metadata:  model.JSONMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// GetSessionMessages 获取会话的全部历史消息（插入顺序）
func (s *SessionService) GetSessionMessages(ctx context.Context, sessionID string) ([]model.SessionMessage, error) {
	return s.messageRepo.GetBySessionID(ctx, sessionID)
}

// SessionHistory 单个会话的历史
type SessionHistory struct {
	Session  *model.Session         `json:"session"`
	Messages []model.SessionMessage `json:"messages"`
}

// GetUserHistory 获取用户全部会话的历史
// 按会话分组，组内消息保持插入顺序
func (s *SessionService) GetUserHistory(ctx context.Context, userID int64) ([]SessionHistory, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	sessionIDs := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		sessionIDs = append(sessionIDs, sess.SessionID)
	}

	messages, err := s.messageRepo.GetBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]model.SessionMessage, len(sessions))
	for _, msg := range messages {
		grouped[msg.SessionID] = append(grouped[msg.SessionID], msg)
	}

	histories := make([]SessionHistory, 0, len(sessions))
	for i := range sessions {
		histories = append(histories, SessionHistory{
			Session:  &sessions[i],
			Messages: grouped[sessions[i].SessionID],
		})
	}
	return histories, nil
}
