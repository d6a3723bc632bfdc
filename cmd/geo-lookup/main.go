package main

import (
	"context"
	"fmt"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/config"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/sink"
	"ip-geolocation/internal/utils"
	"net/netip"
	"os"
)

// 文档注释：查询已导出到 Redis 的结果区间
// 用法：geo-lookup <ipv4>...；未命中输出 "-"
func main() {
	config.LoadDotenv()
	l := logger.Setup()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: geo-lookup <ipv4>...")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()
	rc, err := utils.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		l.Error("redis_open_error", "err", err)
		os.Exit(1)
	}
	code := 0
	for _, arg := range os.Args[1:] {
		ip, err := netip.ParseAddr(arg)
		if err != nil || !ip.Is4() {
			l.Warn("lookup_bad_ip", "ip", arg)
			code = 1
			continue
		}
		b := ip.As4()
		addr := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		label, ok, err := sink.LookupRedis(ctx, rc, cfg.Redis.Key, addr)
		if err != nil {
			l.Error("lookup_error", "ip", arg, "err", err)
			code = 1
			continue
		}
		if !ok {
			label = "-"
		}
		fmt.Printf("%s\t%s\n", cidr.Format(addr), label)
	}
	rc.Close()
	os.Exit(code)
}
