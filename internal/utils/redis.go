// 包 utils：导出端连接工具，统一由 config 提供参数
package utils

import (
	"context"
	"time"

	"ip-geolocation/internal/config"
	"ip-geolocation/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端并 PING 一次
// 约束：连接失败时关闭客户端并返回错误，由调用方决定是否中止
func OpenRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Pass, DB: cfg.DB})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		rc.Close()
		return nil, err
	}
	logger.L().Debug("redis_open", "addr", cfg.Addr, "db", cfg.DB)
	return rc, nil
}
