// Package websocket 提供 WebSocket 通信功能
// 实现客户端与生成 Worker 之间围绕会话的实时消息分发
package websocket

import (
	"time"
)

// MessageType 消息类型
// 封闭枚举：解析未知字符串时退化为 TypeUnknown，不会产生新值
type MessageType string

const (
	// 服务端 → 客户端
	TypeConnectionEstablished MessageType = "connection_established" // 连接建立完成
	TypeHistory               MessageType = "session_history"       // 历史消息回放
	TypeError                 MessageType = "error"                  // 错误消息

	// Worker → 服务端 → 客户端
	TypeSystemResponse    MessageType = "system_response"     // 系统提示
	TypeTaskProgress      MessageType = "task_progress"       // 任务进度
	TypeTaskCompleted     MessageType = "task_completed"      // 单个任务完成
	TypeTaskFailed        MessageType = "task_failed"         // 任务失败
	TypeAllTasksCompleted MessageType = "all_tasks_completed" // 会话的全部任务完成

	// 客户端 → 服务端
	TypeUserInput MessageType = "user_input" // 用户输入
	TypePing      MessageType = "ping"       // 心跳
	TypeRetry     MessageType = "retry"      // 重试入队

	// 解析失败的兜底值
	TypeUnknown MessageType = "unknown"
)

// ParseMessageType 将原始字符串解析为消息类型
// 不在枚举中的值一律返回 TypeUnknown
func ParseMessageType(raw string) MessageType {
	switch t := MessageType(raw); t {
	case TypeConnectionEstablished, TypeHistory, TypeError,
		TypeSystemResponse, TypeTaskProgress, TypeTaskCompleted,
		TypeTaskFailed, TypeAllTasksCompleted,
		TypeUserInput, TypePing, TypeRetry:
		return t
	}
	return TypeUnknown
}

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      MessageType `json:"type"`                 // 消息类型
	Data      interface{} `json:"data"`                 // 消息内容
	SessionID string      `json:"session_id,omitempty"` // 所属会话
	Timestamp string      `json:"timestamp"`            // 时间戳（RFC3339 UTC）
}

// NewMessage 创建新消息
func NewMessage(msgType MessageType, data interface{}, sessionID string) *Message {
	return &Message{
		Type:      msgType,
		Data:      data,
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ==================== Data 类型定义 ====================

// ConnectionEstablishedData 连接建立完成 Data
// 客户端据此获知服务端分配的会话和连接标识
type ConnectionEstablishedData struct {
	SessionID    string `json:"session_id"`        // 会话ID
	ConnectionID string `json:"connection_id"`     // 连接ID
	TaskID       string `json:"task_id,omitempty"` // 已绑定的任务ID（如有）
	Resumed      bool   `json:"resumed"`           // 是否为重连已有会话
}

// HistoryData 历史回放 Data
// 仅发给刚建立的连接，不广播
type HistoryData struct {
	Messages []HistoryMessage `json:"messages"` // 按写入顺序排列
	Count    int              `json:"count"`    // 消息数量
}

// HistoryMessage 历史中的单条消息
type HistoryMessage struct {
	MessageID string                 `json:"message_id"`
	Type      string                 `json:"type"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"` // RFC3339 UTC
}

// ProgressData 任务进度 Data
type ProgressData struct {
	TaskID  string `json:"task_id"`           // 任务ID
	Step    string `json:"step"`              // 当前阶段
	Percent int    `json:"percent,omitempty"` // 进度百分比
	Message string `json:"message"`           // 进度说明
}

// TaskResultData 任务完成 Data
// recipe 字段为 Worker 上报的菜谱内容，落库后回填 recipe_id
type TaskResultData struct {
	TaskID   string                 `json:"task_id"`
	RecipeID int64                  `json:"recipe_id,omitempty"`
	Recipe   map[string]interface{} `json:"recipe,omitempty"`
}

// TaskFailedData 任务失败 Data
type TaskFailedData struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// ErrorData 错误消息 Data
// Recoverable 为 true 时连接保持，客户端可以继续发送
type ErrorData struct {
	Code        int    `json:"code"`        // 业务错误码
	Message     string `json:"message"`     // 错误信息
	Recoverable bool   `json:"recoverable"` // 是否可恢复
}

// UserInputData 用户输入 Data
type UserInputData struct {
	Content string `json:"content"`
}
