package main

import (
	"context"
	"ip-geolocation/internal/config"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/sink"
	"ip-geolocation/internal/utils"
	"os"
	"strconv"
)

// 文档注释：导出版本保留窗口
// 背景：EXPORT_SOURCE_TAG 通常带日期后缀，按 PRUNE_PREFIX 前缀分组保留最近 PRUNE_KEEP 个版本。
// 约束：仅作用于 _ip_geo_ranges 与 _ip_geo_unmatched。
func main() {
	config.LoadDotenv()
	l := logger.Setup()
	prefix := os.Getenv("PRUNE_PREFIX")
	if prefix == "" {
		l.Error("prune_prefix_missing")
		os.Exit(1)
	}
	keep := 10
	if s := os.Getenv("PRUNE_KEEP"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			keep = n
		}
	}
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()
	db, err := utils.OpenPostgres(ctx, cfg.PG)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	_, err = sink.PrunePostgres(ctx, db, prefix, keep)
	db.Close()
	if err != nil {
		l.Error("prune_error", "err", err)
		os.Exit(1)
	}
}
