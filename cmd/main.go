// 程序入口：读取运营商与城市 CIDR 数据集，构建两张区间表并交叉输出 CSV 与诊断日志
package main

import (
	"context"
	"database/sql"
	"fmt"
	"ip-geolocation/internal/audit"
	"ip-geolocation/internal/builder"
	"ip-geolocation/internal/config"
	"ip-geolocation/internal/crossref"
	"ip-geolocation/internal/hint"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/metrics"
	"ip-geolocation/internal/migrate"
	"ip-geolocation/internal/sink"
	"ip-geolocation/internal/source"
	"ip-geolocation/internal/utils"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadDotenv()
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		l.Error("run_error", "err", err)
		stop()
		os.Exit(1)
	}
	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		l.Warn("metrics_textfile_error", "path", cfg.MetricsTextfile, "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	l := logger.L()
	l.Info("reading_datasets", "operator_dir", cfg.OperatorDir, "city_dir", cfg.CityDir)
	coarse, err := readCoarse(cfg)
	if err != nil {
		return fmt.Errorf("read coarse: %w", err)
	}
	fine, err := source.ReadDir(cfg.CityDir, cfg.CityFilter)
	if err != nil {
		return fmt.Errorf("read fine: %w", err)
	}

	coarseOpt := builder.Options{Name: "coarse", Policy: cfg.Policy}
	fineOpt := builder.Options{Name: "fine", Policy: cfg.Policy}
	if cfg.AuditOverlaps {
		coarseOpt.Audit = audit.New("coarse", 0)
		fineOpt.Audit = audit.New("fine", 0)
	}
	l.Info("building_maps", "coarse_groups", len(coarse), "fine_groups", len(fine), "policy", cfg.Policy.String())
	pair, err := builder.BuildPair(ctx, coarse, fine, coarseOpt, fineOpt)
	if err != nil {
		return err
	}

	files, err := sink.Create(cfg.OutputCSV, cfg.OutputLog)
	if err != nil {
		return err
	}
	defer files.Close()
	out := sink.NewMulti().AddRows(files.RowWriter)

	var diags crossref.DiagnosticSink = files.DiagWriter
	if cfg.IP2RegionPath != "" {
		h, err := hint.Open(cfg.IP2RegionPath)
		if err != nil {
			l.Warn("ip2region_open_error", "path", cfg.IP2RegionPath, "err", err)
		} else {
			diags = &hint.Annotate{Next: diags, Hinter: h, Log: l}
		}
	}
	out.AddDiags(diags)

	var pg *sink.Postgres
	if cfg.ExportPG {
		db, err := utils.OpenPostgres(ctx, cfg.PG)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()
		if pg, err = openPG(ctx, db, cfg.SourceTag); err != nil {
			return err
		}
		out.AddRows(pg).AddDiags(pg)
	}
	var rs *sink.Redis
	if cfg.ExportRedis {
		rc, err := utils.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		if rs, err = openRedis(ctx, rc, cfg.Redis.Key); err != nil {
			return err
		}
		out.AddRows(rs)
	}

	l.Info("compiling_csv", "path", cfg.OutputCSV)
	sum, err := crossref.WalkConcurrent(ctx, pair.Fine, pair.Coarse, out, out, cfg.WalkWorkers)
	if err != nil {
		if pg != nil {
			_ = pg.Abort()
		}
		return err
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			return fmt.Errorf("postgres commit: %w", err)
		}
	}
	if rs != nil {
		if err := rs.Close(); err != nil {
			return fmt.Errorf("redis flush: %w", err)
		}
	}
	if err := files.Close(); err != nil {
		return err
	}
	l.Info("done", "rows", sum.Rows, "unmatched", sum.Unmatched, "csv", cfg.OutputCSV, "log", cfg.OutputLog)
	return nil
}

// readCoarse：配置了 MaxMind ASN 库时以其为粗粒度数据源，否则读取运营商目录
func readCoarse(cfg *config.Config) ([]source.Group, error) {
	if cfg.CoarseMMDBPath != "" {
		return source.ReadASN(cfg.CoarseMMDBPath, cfg.CoarseMMDBLabels, cfg.CoarseMMDBOnly)
	}
	return source.ReadDir(cfg.OperatorDir, cfg.OperatorFilter)
}

func openPG(ctx context.Context, db *sql.DB, tag string) (*sink.Postgres, error) {
	if err := migrate.EnsureSchema(db); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return sink.OpenPostgres(ctx, db, tag)
}

func openRedis(ctx context.Context, rc *redis.Client, key string) (*sink.Redis, error) {
	rs, err := sink.OpenRedis(ctx, rc, key)
	if err != nil {
		return nil, fmt.Errorf("redis open %s: %w", key, err)
	}
	return rs, nil
}
