package websocket

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn 测试用的内存连接
type fakeConn struct {
	mu       sync.Mutex
	messages []*Message
	failSend bool
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("write failed")
	}
	c.messages = append(c.messages, v.(*Message))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Message(nil), c.messages...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegistryRegisterAndSend(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Register("conn-1", "sess-1", conn)

	require.True(t, r.IsSessionConnected("sess-1"))
	assert.Equal(t, 1, r.ConnectionCount())
	assert.Equal(t, 1, r.SessionConnectionCount("sess-1"))

	ok := r.Send("sess-1", NewMessage(TypeSystemResponse, nil, "sess-1"))
	require.True(t, ok)
	require.Len(t, conn.received(), 1)
	assert.Equal(t, TypeSystemResponse, conn.received()[0].Type)
}

func TestRegistrySendFanOut(t *testing.T) {
	r := NewRegistry()
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	other := &fakeConn{}

	r.Register("conn-1", "sess-1", conn1)
	r.Register("conn-2", "sess-1", conn2)
	r.Register("conn-3", "sess-2", other)

	ok := r.Send("sess-1", NewMessage(TypeTaskProgress, nil, "sess-1"))
	require.True(t, ok)

	// 同会话的两个连接都收到，其他会话不受影响
	assert.Len(t, conn1.received(), 1)
	assert.Len(t, conn2.received(), 1)
	assert.Empty(t, other.received())
}

func TestRegistrySendEvictsDeadConnection(t *testing.T) {
	r := NewRegistry()
	alive := &fakeConn{}
	dead := &fakeConn{failSend: true}

	r.Register("conn-alive", "sess-1", alive)
	r.Register("conn-dead", "sess-1", dead)

	// 部分失败不影响存活连接的投递
	ok := r.Send("sess-1", NewMessage(TypeTaskProgress, nil, "sess-1"))
	require.True(t, ok)
	assert.Len(t, alive.received(), 1)

	// 写失败的连接被当场注销并关闭
	assert.True(t, dead.isClosed())
	assert.Equal(t, 1, r.SessionConnectionCount("sess-1"))
	assert.Equal(t, 1, r.ConnectionCount())
}

func TestRegistrySendAllConnectionsDead(t *testing.T) {
	r := NewRegistry()
	dead1 := &fakeConn{failSend: true}
	dead2 := &fakeConn{failSend: true}

	r.Register("conn-1", "sess-1", dead1)
	r.Register("conn-2", "sess-1", dead2)

	// 返回值只反映调用时会话是否有连接，与逐个连接的写入结果无关
	ok := r.Send("sess-1", NewMessage(TypeTaskProgress, nil, "sess-1"))
	assert.True(t, ok)

	// 全部写失败的连接都被注销
	assert.True(t, dead1.isClosed())
	assert.True(t, dead2.isClosed())
	assert.False(t, r.IsSessionConnected("sess-1"))

	// 下一次投递时会话已无连接
	assert.False(t, r.Send("sess-1", NewMessage(TypeTaskProgress, nil, "sess-1")))
}

func TestRegistrySendToEmptySession(t *testing.T) {
	r := NewRegistry()

	// 没有连接的会话投递返回 false，不报错
	ok := r.Send("sess-none", NewMessage(TypeSystemResponse, nil, "sess-none"))
	assert.False(t, ok)
	assert.False(t, r.IsSessionConnected("sess-none"))
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Register("conn-1", "sess-1", conn)
	r.Unregister("conn-1")

	assert.False(t, r.IsSessionConnected("sess-1"))
	assert.Equal(t, 0, r.ConnectionCount())

	// 重复注销是安全的
	r.Unregister("conn-1")
	r.Unregister("conn-missing")
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestRegistryReplaceConnection(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Register("conn-1", "sess-1", old)
	r.Register("conn-1", "sess-1", replacement)

	// 旧连接被关闭，注册表中只剩新连接
	assert.True(t, old.isClosed())
	assert.Equal(t, 1, r.ConnectionCount())

	r.Send("sess-1", NewMessage(TypeSystemResponse, nil, "sess-1"))
	assert.Empty(t, old.received())
	assert.Len(t, replacement.received(), 1)
}

func TestRegistrySendTo(t *testing.T) {
	r := NewRegistry()
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}

	r.Register("conn-1", "sess-1", conn1)
	r.Register("conn-2", "sess-1", conn2)

	// 单发不广播
	ok := r.SendTo("conn-1", NewMessage(TypeHistory, nil, "sess-1"))
	require.True(t, ok)
	assert.Len(t, conn1.received(), 1)
	assert.Empty(t, conn2.received())

	assert.False(t, r.SendTo("conn-missing", NewMessage(TypeHistory, nil, "sess-1")))
}

func TestRegistryConnectedSessions(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1", "sess-1", &fakeConn{})
	r.Register("conn-2", "sess-2", &fakeConn{})

	sessions := r.ConnectedSessions()
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, sessions)

	r.Unregister("conn-2")
	assert.Equal(t, []string{"sess-1"}, r.ConnectedSessions())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n%26))
			r.Register(connID, "sess-1", &fakeConn{})
			r.Send("sess-1", NewMessage(TypeTaskProgress, nil, "sess-1"))
			r.Unregister(connID)
		}(i)
	}
	wg.Wait()

	assert.False(t, r.IsSessionConnected("sess-1"))
}
