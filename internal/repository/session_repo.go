// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bae-recipe-server/internal/model"
)

// SessionRepository 生成会话数据访问层
// 负责会话相关的所有数据库操作
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create 创建新会话
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetBySessionID 根据会话标识获取会话
// 未找到时返回 (nil, nil)
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetActiveByUserID 获取用户最新的活跃会话
// 未找到时返回 (nil, nil)
func (r *SessionRepository) GetActiveByUserID(ctx context.Context, userID int64) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SessionStatusActive).
		Order("created_at DESC"). // 取最新的
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListByUserID 获取用户的所有会话，按创建时间倒序
func (r *SessionRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// UpdateStatus 更新会话状态
// 进入终态（completed/failed/cancelled）时记录完成时间
func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID, status string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if model.IsTerminalSessionStatus(status) {
		updates["completed_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}

// UpdateTaskID 记录会话已投递的任务标识
func (r *SessionRepository) UpdateTaskID(ctx context.Context, sessionID, taskID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("task_id", taskID).Error
}

// Delete 删除会话及其全部历史消息
// 返回是否实际删除了会话记录
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.SessionMessage{}).Error; err != nil {
			return err
		}
		result := tx.Where("session_id = ?", sessionID).Delete(&model.Session{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}
