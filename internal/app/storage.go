package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
)

// OpenStorage 按配置选择会话的持久化后端，返回的 closer 用于释放连接
func OpenStorage(ctx context.Context, cfg *config.Config) (session.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Session.Backend {
	case "memory":
		return session.NewMemoryStorage(), noop, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		// 和数据库一样，创建客户端不会立即连接，因此显式地 ping 一下
		pingCtx, cancel := context.WithTimeout(ctx, cfg.RedisOperationTimeout())
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr(), err)
		}
		return session.NewRedisStorage(rdb, cfg.Session.KeyPrefix, cfg.RedisOperationTimeout()), rdb.Close, nil
	default:
		path, err := cfg.SessionFilePath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve session file: %w", err)
		}
		return session.NewFileStorage(path), noop, nil
	}
}
