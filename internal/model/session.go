// Package model 定义了与数据库表对应的数据结构
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SessionStatus 生成会话状态常量
const (
	SessionStatusActive    = "active"    // 活跃中，任务可能仍在执行
	SessionStatusCompleted = "completed" // 生成完成
	SessionStatusFailed    = "failed"    // 生成失败
	SessionStatusCancelled = "cancelled" // 已取消
)

// IsTerminalSessionStatus 判断是否为终态
// 进入终态的会话不再接受新的任务投递
func IsTerminalSessionStatus(status string) bool {
	switch status {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// Session 菜谱生成会话模型
// 对应数据库表 sessions
// 表示一次"视频 → 菜谱"的生成对话，可能跨越多个 WebSocket 连接
type Session struct {
	// ID 自增主键
	ID int64 `gorm:"primaryKey" json:"-"`

	// SessionID 会话唯一标识（UUID），客户端和服务端共同可见
	SessionID string `gorm:"size:36;uniqueIndex;not null" json:"session_id"`

	// UserID 所属用户ID
	// 表结构允许 NULL 以兼容匿名场景，但本服务要求认证后才能建立会话
	UserID *int64 `gorm:"index" json:"user_id,omitempty"`

	// Status 会话状态，见 SessionStatus 常量
	// 任意时刻有且仅有一个状态
	Status string `gorm:"size:20;default:active;index" json:"status"`

	// TaskID 已投递的生成任务ID
	// 为空表示尚未成功投递任务（投递一次后不再重复投递）
	TaskID string `gorm:"size:36" json:"task_id,omitempty"`

	// CreatedAt 会话创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 最后更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// CompletedAt 进入终态的时间，仅终态有值
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Messages 会话的历史消息（一对多关系）
	Messages []SessionMessage `gorm:"foreignKey:SessionID;references:SessionID" json:"messages,omitempty"`
}

// TableName 指定表名
func (Session) TableName() string {
	return "sessions"
}

// SessionMessageType 历史消息类型常量
const (
	MessageTypeSystemResponse    = "system_response"    // 系统通知
	MessageTypeUserInput         = "user_input"         // 用户输入
	MessageTypeTaskProgress      = "task_progress"      // 任务进度
	MessageTypeTaskCompleted     = "task_completed"     // 任务完成
	MessageTypeTaskFailed        = "task_failed"        // 任务失败
	MessageTypeAllTasksCompleted = "all_tasks_completed" // 全部任务完成
	MessageTypeError             = "error"              // 错误
)

// JSONMap 开放的键值对元数据
// 以 JSON 形式存入数据库的 json 列
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer，写库时序列化为 JSON
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner，读库时反序列化
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// SessionMessage 会话历史消息模型
// 对应数据库表 session_messages
// 仅追加（append-only）：消息一旦写入不修改、不单独删除，
// 只在整个会话被丢弃时随会话一起删除
type SessionMessage struct {
	// ID 自增主键，插入顺序即会话内的消息顺序
	ID int64 `gorm:"primaryKey" json:"-"`

	// MessageID 消息唯一标识（UUID）
	MessageID string `gorm:"size:36;uniqueIndex;not null" json:"message_id"`

	// SessionID 所属会话标识
	SessionID string `gorm:"size:36;index;not null" json:"session_id"`

	// Type 消息类型，见 SessionMessageType 常量
	Type string `gorm:"size:30;not null" json:"type"`

	// Content 文本内容
	Content string `gorm:"type:text;not null" json:"content"`

	// Metadata 开放的键值对元数据
	Metadata JSONMap `gorm:"type:json" json:"metadata"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// TableName 指定表名
func (SessionMessage) TableName() string {
	return "session_messages"
}
