// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、用户活跃会话等需要快速访问的数据
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bae-recipe-server/internal/config"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username, // 云厂商 Redis 需要用户名
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Client 返回底层 Redis 客户端
// 任务队列生产者与缓存共用同一个连接池
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================
// 用于实现 Token 强制失效（登出）功能

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	// 计算剩余有效时间
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除
	return c.client.Set(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	// EXISTS 命令返回存在的 Key 数量
	return c.client.Exists(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash)).Val() > 0
}

// ==================== 用户活跃会话缓存 ====================
// sessions 表是权威数据，这里只是加速 "我的会话" 查询的缓存

// SetUserActiveSession 记录用户当前的活跃生成会话
func (c *RedisCache) SetUserActiveSession(ctx context.Context, userID int64, sessionID string) error {
	// 不设置过期时间，会话结束时清理
	return c.client.Set(ctx, fmt.Sprintf("user:%d:active_session", userID), sessionID, 0).Err()
}

// GetUserActiveSession 获取用户当前的活跃生成会话
// 没有活跃会话时返回空字符串
func (c *RedisCache) GetUserActiveSession(ctx context.Context, userID int64) (string, error) {
	result, err := c.client.Get(ctx, fmt.Sprintf("user:%d:active_session", userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

// ClearUserActiveSession 清除用户的活跃会话记录
func (c *RedisCache) ClearUserActiveSession(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("user:%d:active_session", userID)).Err()
}
