// Package queue 提供菜谱生成任务队列的生产者实现
// 任务通过 Redis List 投递给外部 Worker 进程，
// 同时在 Redis Hash 中维护一份任务状态镜像供查询
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bae-recipe-server/pkg/util"
)

// TaskStatus 任务状态常量
// queued → processing → {completed | failed | cancelled | retrying}
const (
	TaskStatusQueued     = "queued"     // 已入队
	TaskStatusProcessing = "processing" // 处理中
	TaskStatusCompleted  = "completed"  // 已完成
	TaskStatusFailed     = "failed"     // 已失败
	TaskStatusCancelled  = "cancelled"  // 已取消
	TaskStatusRetrying   = "retrying"   // 重试中
)

// NormalizeTaskStatus 将 Worker 上报的原始状态归一化为镜像状态
// 状态镜像只是缓存，权威状态来自 Worker；读取时必须归一化
// 已经是镜像词汇表中的值则原样返回
func NormalizeTaskStatus(raw string) string {
	switch raw {
	case "PENDING":
		return TaskStatusQueued
	case "STARTED":
		return TaskStatusProcessing
	case "SUCCESS":
		return TaskStatusCompleted
	case "FAILURE":
		return TaskStatusFailed
	case "RETRY":
		return TaskStatusRetrying
	case "REVOKED":
		return TaskStatusCancelled
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled, TaskStatusRetrying:
		return raw
	}
	// 未知状态按已入队处理，等待 Worker 覆盖
	return TaskStatusQueued
}

// TaskPayload 投递到队列的任务内容
// Worker 从队列 List 中 BRPOP 取出后按此结构解析
type TaskPayload struct {
	TaskID    string                 `json:"task_id"`    // 任务标识
	SessionID string                 `json:"session_id"` // 所属会话
	UserID    int64                  `json:"user_id"`    // 提交用户
	URL       string                 `json:"url"`        // 来源视频 URL
	Params    map[string]interface{} `json:"params"`     // 生成参数（人数、口味等）
	Priority  int                    `json:"priority"`   // 优先级
	CreatedAt string                 `json:"created_at"` // 入队时间（RFC3339 UTC）
}

// TaskStatusInfo 任务状态查询结果
type TaskStatusInfo struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Producer 任务队列生产者
// 只负责入队和状态镜像维护，消费由外部 Worker 进程完成
type Producer struct {
	client     *redis.Client // Redis 客户端
	queueName  string        // 队列 List 的 Key
	taskExpire time.Duration // 任务元数据的保留时间
}

// NewProducer 创建 Producer 实例
func NewProducer(client *redis.Client, queueName string, taskExpire time.Duration) *Producer {
	if queueName == "" {
		queueName = "recipe_gen_queue"
	}
	if taskExpire <= 0 {
		taskExpire = time.Hour
	}
	return &Producer{
		client:     client,
		queueName:  queueName,
		taskExpire: taskExpire,
	}
}

// taskKey 返回任务状态镜像的 Redis Key
func taskKey(taskID string) string {
	return fmt.Sprintf("task:%s", taskID)
}

// Enqueue 投递一个菜谱生成任务
// 生产者本身不做去重，调用方负责保证一个会话只投递一次
// 返回:
//   - string: 任务ID
//   - error: Redis 操作错误
func (p *Producer) Enqueue(ctx context.Context, sessionID string, userID int64, url string, params map[string]interface{}) (string, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	taskID := util.GenerateUUID()
	now := time.Now().UTC().Format(time.RFC3339)

	payload := TaskPayload{
		TaskID:    taskID,
		SessionID: sessionID,
		UserID:    userID,
		URL:       url,
		Params:    params,
		Priority:  1,
		CreatedAt: now,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	paramsJSON, _ := json.Marshal(params)

	// 先写状态镜像再入队：Worker 取到任务时镜像一定存在
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, taskKey(taskID), map[string]interface{}{
		"task_id":    taskID,
		"session_id": sessionID,
		"user_id":    strconv.FormatInt(userID, 10),
		"url":        url,
		"params":     string(paramsJSON),
		"priority":   "1",
		"status":     TaskStatusQueued,
		"created_at": now,
	})
	pipe.Expire(ctx, taskKey(taskID), p.taskExpire)
	pipe.LPush(ctx, p.queueName, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("Task enqueued: taskID=%s, sessionID=%s", taskID, sessionID)
	return taskID, nil
}

// GetTaskStatus 查询任务状态
// 镜像可能滞后，读取时归一化 Worker 上报的原始状态并回写
// 任务不存在时返回 (nil, nil)
func (p *Producer) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusInfo, error) {
	data, err := p.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	userID, _ := strconv.ParseInt(data["user_id"], 10, 64)
	priority, _ := strconv.Atoi(data["priority"])

	status := NormalizeTaskStatus(data["status"])
	info := &TaskStatusInfo{
		TaskID:    taskID,
		SessionID: data["session_id"],
		UserID:    userID,
		URL:       data["url"],
		Status:    status,
		Priority:  priority,
		CreatedAt: data["created_at"],
		UpdatedAt: data["updated_at"],
		Error:     data["error"],
	}

	// 归一化结果回写镜像
	if status != data["status"] {
		if err := p.updateStatus(ctx, taskID, status, ""); err != nil {
			log.Printf("Failed to reconcile task status: %v", err)
		}
	}

	return info, nil
}

// UpdateTaskStatus 更新任务状态镜像
// 返回任务是否存在
func (p *Producer) UpdateTaskStatus(ctx context.Context, taskID, status, errMsg string) (bool, error) {
	exists, err := p.client.Exists(ctx, taskKey(taskID)).Result()
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}
	return true, p.updateStatus(ctx, taskID, NormalizeTaskStatus(status), errMsg)
}

// updateStatus 内部方法：写入状态和更新时间
func (p *Producer) updateStatus(ctx context.Context, taskID, status, errMsg string) error {
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	return p.client.HSet(ctx, taskKey(taskID), fields).Err()
}

// CancelTask 取消任务
// 标记镜像为 cancelled 并发布取消通知，Worker 订阅该频道后自行终止
func (p *Producer) CancelTask(ctx context.Context, taskID string) (bool, error) {
	ok, err := p.UpdateTaskStatus(ctx, taskID, TaskStatusCancelled, "")
	if err != nil || !ok {
		return ok, err
	}

	if err := p.client.Publish(ctx, "task:cancel", taskID).Err(); err != nil {
		log.Printf("Failed to publish cancel notice: %v", err)
	}
	return true, nil
}

// QueueLength 获取当前队列长度
func (p *Producer) QueueLength(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.queueName).Result()
}
