package main

import (
	"fmt"
	"ip-geolocation/internal/audit"
	"ip-geolocation/internal/builder"
	"ip-geolocation/internal/config"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/source"
	"os"
)

// 文档注释：数据集重叠审计
// 背景：区间表不处理不同标签的重叠，后写入者覆盖；此工具单独构建一个目录并列出全部冲突网段。
// 用法：overlap-audit <dir>，目录缺省为 CITY_DIR；存在冲突时退出码为 2。
func main() {
	config.LoadDotenv()
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	dir := cfg.CityDir
	filter := cfg.CityFilter
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if dir == cfg.OperatorDir {
		filter = cfg.OperatorFilter
	}
	groups, err := source.ReadDir(dir, filter)
	if err != nil {
		l.Error("source_error", "dir", dir, "err", err)
		os.Exit(1)
	}
	a := audit.New(dir, 0)
	if _, _, err := builder.Build(groups, builder.Options{Name: "audit", Policy: builder.PolicySkip, Audit: a}); err != nil {
		l.Error("build_error", "err", err)
		os.Exit(1)
	}
	for _, c := range a.Conflicts() {
		fmt.Printf("%s\t%s\t%s\t%s\n", c.Prefix, c.Label, c.Other, c.OtherLabel)
	}
	l.Info("overlap_audit_done", "dir", dir, "conflicts", a.Count())
	if a.Count() > 0 {
		os.Exit(2)
	}
}
