// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 写操作超时时间
	writeWait = 10 * time.Second

	// 单条消息最大字节数
	maxMessageSize = 64 * 1024
)

// wsConn 带写锁的 WebSocket 连接包装
// 读循环和注册表的广播可能同时写同一个连接，
// gorilla 的 Conn 不允许并发写，所有写操作必须经过这把锁
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// newWSConn 包装一个已升级的连接
func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(maxMessageSize)
	return &wsConn{conn: conn}
}

// WriteJSON 序列化并写入一条消息
func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// ReadMessage 读取下一条消息
// 读只有一个 goroutine，不需要加锁
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// CloseWith 发送关闭帧后关闭底层连接
// 先尽力发送带状态码的关闭帧，让客户端拿到关闭原因
func (c *wsConn) CloseWith(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	// 关闭帧发送失败不影响后续的连接关闭
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.conn.Close()
}

// Close 直接关闭底层连接
func (c *wsConn) Close() error {
	return c.conn.Close()
}
