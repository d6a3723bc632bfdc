package utils

import (
	"context"
	"database/sql"
	"time"

	"ip-geolocation/internal/config"
	"ip-geolocation/internal/logger"

	_ "github.com/lib/pq"
)

// OpenPostgres：按配置打开导出库并做一次连通性检查
func OpenPostgres(ctx context.Context, cfg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Debug("pg_open", "host", cfg.Host, "db", cfg.DB)
	return db, nil
}
