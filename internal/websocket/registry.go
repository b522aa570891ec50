// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"log"
	"sync"
)

// Conn 注册表管理的连接
// *gorilla/websocket.Conn 满足该接口；测试中可以用内存实现替代
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Registry 是 WebSocket 连接的中心注册表
// 维护两张映射：
// 1. 连接映射：connectionID -> Conn
// 2. 会话映射：sessionID -> 该会话下的 connectionID 集合
// 两张映射始终在同一把锁内一起更新，保证互相一致
type Registry struct {
	// 连接映射：connectionID -> Conn
	conns map[string]Conn

	// 会话映射：sessionID -> connectionID 集合
	// 一个会话可能有多个连接（多端同时观看同一次生成）
	sessions map[string]map[string]struct{}

	// 连接到会话的反向映射：connectionID -> sessionID
	connSession map[string]string

	// 互斥锁，保护并发访问
	mu sync.RWMutex
}

// NewRegistry 创建 Registry 实例
func NewRegistry() *Registry {
	return &Registry{
		conns:       make(map[string]Conn),
		sessions:    make(map[string]map[string]struct{}),
		connSession: make(map[string]string),
	}
}

// Register 注册连接到指定会话
// 同一 connectionID 重复注册时旧连接被关闭并替换
func (r *Registry) Register(connectionID, sessionID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.conns[connectionID]; exists {
		old.Close()
		r.removeLocked(connectionID)
	}

	r.conns[connectionID] = conn
	r.connSession[connectionID] = sessionID

	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[sessionID] = set
	}
	set[connectionID] = struct{}{}

	log.Printf("Connection registered: connectionID=%s, sessionID=%s", connectionID, sessionID)
}

// Unregister 注销连接
// 幂等：连接不存在时直接返回，不报错
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connectionID]; !exists {
		return
	}

	r.removeLocked(connectionID)
	log.Printf("Connection unregistered: connectionID=%s", connectionID)
}

// removeLocked 从所有映射中移除连接，调用方必须持有写锁
func (r *Registry) removeLocked(connectionID string) {
	delete(r.conns, connectionID)

	sessionID, ok := r.connSession[connectionID]
	if !ok {
		return
	}
	delete(r.connSession, connectionID)

	if set, ok := r.sessions[sessionID]; ok {
		delete(set, connectionID)
		// 会话没有连接了，删除 key
		if len(set) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}

// Send 向会话下的所有连接广播消息
// 尽力而为：单个连接写失败只影响它自己，失败的连接当场注销并关闭
// 返回调用时会话下是否存在连接，与单个连接的写入结果无关
func (r *Registry) Send(sessionID string, msg *Message) bool {
	// 在读锁下做快照，写操作在锁外进行
	r.mu.RLock()
	set := r.sessions[sessionID]
	targets := make(map[string]Conn, len(set))
	for connectionID := range set {
		targets[connectionID] = r.conns[connectionID]
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return false
	}

	for connectionID, conn := range targets {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Failed to send to connection %s: %v", connectionID, err)
			// 写失败说明连接已死，当场移除
			r.mu.Lock()
			r.removeLocked(connectionID)
			r.mu.Unlock()
			conn.Close()
		}
	}
	return true
}

// SendTo 向单个连接发送消息
// 用于历史回放等不应广播的场景
func (r *Registry) SendTo(connectionID string, msg *Message) bool {
	r.mu.RLock()
	conn, exists := r.conns[connectionID]
	r.mu.RUnlock()

	if !exists {
		return false
	}

	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Failed to send to connection %s: %v", connectionID, err)
		r.mu.Lock()
		r.removeLocked(connectionID)
		r.mu.Unlock()
		conn.Close()
		return false
	}
	return true
}

// IsSessionConnected 检查会话是否有在线连接
func (r *Registry) IsSessionConnected(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID]) > 0
}

// ConnectedSessions 获取当前有连接的所有会话ID
func (r *Registry) ConnectedSessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionIDs := make([]string, 0, len(r.sessions))
	for sessionID := range r.sessions {
		sessionIDs = append(sessionIDs, sessionID)
	}
	return sessionIDs
}

// ConnectionCount 获取当前连接总数
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SessionConnectionCount 获取会话下的连接数
func (r *Registry) SessionConnectionCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID])
}
