// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"

	"bae-recipe-server/internal/model"
)

// MessageRepository 会话历史消息数据访问层
// 历史是仅追加的日志：只有 Create 和整段读取/删除，没有单条更新
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 追加一条历史消息
// 单行 INSERT 保证消息级别的原子性；
// 不同连接写入同一会话时按数据库接收顺序排列
func (r *MessageRepository) Create(ctx context.Context, message *model.SessionMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetBySessionID 获取会话的全部历史消息
// 按自增主键正序排列，即插入顺序
func (r *MessageRepository) GetBySessionID(ctx context.Context, sessionID string) ([]model.SessionMessage, error) {
	var messages []model.SessionMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// GetBySessionIDs 批量获取多个会话的历史消息
// 用于 "我的历史" 接口一次性加载
func (r *MessageRepository) GetBySessionIDs(ctx context.Context, sessionIDs []string) ([]model.SessionMessage, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	var messages []model.SessionMessage
	err := r.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// CountBySessionID 统计会话的消息数量
func (r *MessageRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SessionMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// DeleteBySessionID 删除会话的所有消息
// 仅在整个会话被丢弃时调用
func (r *MessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.SessionMessage{}).Error
}
