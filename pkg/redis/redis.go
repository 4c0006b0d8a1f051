package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MarcoNaik/tectramin-sub001/config"
)

// Client Redis 客户端封装
// 用于同步接口限流与派工咨询锁；正确性不依赖 Redis，nil 客户端的所有方法均为空操作
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 滑动窗口限流 ──

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit 滑动窗口限流：window 内最多 limit 次
// 返回 true 表示允许本次请求。Redis 异常时放行并记录告警
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c == nil || limit <= 0 {
		return true, nil
	}

	fullKey := rateLimitPrefix + key
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()[:8]
	minScore := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", minScore)
	card := pipe.ZCard(ctx, fullKey)
	pipe.ZAdd(ctx, fullKey, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("限流检查失败，放行请求", zap.String("key", key), zap.Error(err))
		return true, err
	}

	return card.Val() < int64(limit), nil
}

// ── 咨询锁 ──

const lockPrefix = "lock:"

// releaseScript 仅当锁仍由本持有者持有时删除
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock 尝试获取咨询锁，返回持有者令牌；未获取到时 token 为空
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", nil
	}
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock 释放咨询锁
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	if c == nil || token == "" {
		return nil
	}
	return releaseScript.Run(ctx, c.rdb, []string{lockPrefix + key}, token).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
