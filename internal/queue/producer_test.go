package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTaskStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		// Worker 上报的原始状态
		{"PENDING", TaskStatusQueued},
		{"STARTED", TaskStatusProcessing},
		{"SUCCESS", TaskStatusCompleted},
		{"FAILURE", TaskStatusFailed},
		{"RETRY", TaskStatusRetrying},
		{"REVOKED", TaskStatusCancelled},

		// 镜像词汇表中的值原样返回
		{"queued", TaskStatusQueued},
		{"processing", TaskStatusProcessing},
		{"completed", TaskStatusCompleted},
		{"failed", TaskStatusFailed},
		{"cancelled", TaskStatusCancelled},
		{"retrying", TaskStatusRetrying},

		// 未知状态兜底为已入队
		{"", TaskStatusQueued},
		{"EXPLODED", TaskStatusQueued},
		{"Completed", TaskStatusQueued},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTaskStatus(tt.raw), "raw=%q", tt.raw)
	}
}

func TestNewProducerDefaults(t *testing.T) {
	p := NewProducer(nil, "", 0)
	assert.Equal(t, "recipe_gen_queue", p.queueName)
	assert.Equal(t, time.Hour, p.taskExpire)

	p = NewProducer(nil, "custom_queue", 30*time.Minute)
	assert.Equal(t, "custom_queue", p.queueName)
	assert.Equal(t, 30*time.Minute, p.taskExpire)
}

func TestTaskKey(t *testing.T) {
	assert.Equal(t, "task:abc-123", taskKey("abc-123"))
}
