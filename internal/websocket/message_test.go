package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		raw  string
		want MessageType
	}{
		{"connection_established", TypeConnectionEstablished},
		{"session_history", TypeHistory},
		{"system_response", TypeSystemResponse},
		{"task_progress", TypeTaskProgress},
		{"task_completed", TypeTaskCompleted},
		{"task_failed", TypeTaskFailed},
		{"all_tasks_completed", TypeAllTasksCompleted},
		{"user_input", TypeUserInput},
		{"ping", TypePing},
		{"retry", TypeRetry},
		{"error", TypeError},
		// 枚举外的值退化为 unknown
		{"", TypeUnknown},
		{"bogus", TypeUnknown},
		{"unknown", TypeUnknown},
		{"SYSTEM_RESPONSE", TypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMessageType(tt.raw), "raw=%q", tt.raw)
	}
}

func TestNewMessageTimestamp(t *testing.T) {
	msg := NewMessage(TypeSystemResponse, nil, "sess-1")

	// 时间戳是 RFC3339 格式的 UTC 时间
	ts, err := time.Parse(time.RFC3339, msg.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)
}

func TestMessageEnvelopeJSON(t *testing.T) {
	msg := NewMessage(TypeError, &ErrorData{
		Code:        1402,
		Message:     "任务投递失败，请重试",
		Recoverable: true,
	}, "sess-1")

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "error", decoded["type"])
	assert.Equal(t, "sess-1", decoded["session_id"])
	assert.NotEmpty(t, decoded["timestamp"])

	payload := decoded["data"].(map[string]interface{})
	assert.Equal(t, float64(1402), payload["code"])
	assert.Equal(t, true, payload["recoverable"])
}
