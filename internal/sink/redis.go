package sink

import (
	"context"
	"errors"
	"fmt"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/crossref"
	"ip-geolocation/internal/logger"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisBatch = 1000

// Redis：结果区间写入有序集合，score 为区间结束地址，member 为 "start,end,label"
// 约束：Open 时清空目标 key；按批次 pipeline 写入；Close 刷新剩余批次。非并发安全。
type Redis struct {
	ctx   context.Context
	rc    *redis.Client
	key   string
	pipe  redis.Pipeliner
	n     int
	total int
}

func OpenRedis(ctx context.Context, rc *redis.Client, key string) (*Redis, error) {
	if rc == nil {
		return nil, errors.New("redis client is nil")
	}
	if err := rc.Del(ctx, key).Err(); err != nil {
		return nil, err
	}
	return &Redis{ctx: ctx, rc: rc, key: key, pipe: rc.Pipeline()}, nil
}

// RedisMember：有序集合成员编码
func RedisMember(r crossref.Row) string {
	return strconv.FormatUint(uint64(r.Start), 10) + "," + strconv.FormatUint(uint64(r.End), 10) + "," + r.Label()
}

// ParseRedisMember：解析成员编码
func ParseRedisMember(s string) (start, end uint32, label string, err error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return 0, 0, "", fmt.Errorf("bad member %q", s)
	}
	a, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, "", err
	}
	b, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, "", err
	}
	return uint32(a), uint32(b), parts[2], nil
}

func (r *Redis) WriteRow(row crossref.Row) error {
	r.pipe.ZAdd(r.ctx, r.key, redis.Z{Score: float64(row.End), Member: RedisMember(row)})
	r.n++
	r.total++
	if r.n < redisBatch {
		return nil
	}
	return r.flush()
}

func (r *Redis) flush() error {
	if r.n == 0 {
		return nil
	}
	_, err := r.pipe.Exec(r.ctx)
	r.n = 0
	if err == nil {
		logger.L().Debug("redis_export_progress", "count", r.total)
	}
	return err
}

func (r *Redis) Close() error {
	err := r.flush()
	logger.L().Info("redis_export_done", "key", r.key, "count", r.total)
	return err
}

// 文档注释：按地址查询已导出的区间
// 约束：取结束地址 >= addr 的第一个成员，再校验起始地址 <= addr；未命中返回 ok=false。
func LookupRedis(ctx context.Context, rc *redis.Client, key string, addr uint32) (label string, ok bool, err error) {
	res, err := rc.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: strconv.FormatUint(uint64(addr), 10), Max: "+inf", Count: 1}).Result()
	if err != nil {
		return "", false, err
	}
	if len(res) == 0 {
		return "", false, nil
	}
	start, _, label, err := ParseRedisMember(res[0])
	if err != nil {
		return "", false, err
	}
	if start > addr {
		logger.L().Debug("redis_lookup_gap", "ip", cidr.Format(addr))
		return "", false, nil
	}
	return label, true, nil
}
