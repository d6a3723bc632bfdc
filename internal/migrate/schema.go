package migrate

import (
	"database/sql"
	"ip-geolocation/internal/logger"
)

// 背景：首次导出时自动创建结果表与索引
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；按 source_tag 区分多次导出，便于回滚与清理
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _ip_geo_ranges (
            start_int BIGINT NOT NULL,
            end_int BIGINT NOT NULL,
            first_octet INT NOT NULL,
            fine_label TEXT NOT NULL,
            coarse_label TEXT NOT NULL,
            source_tag TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_geo_ranges_first_start ON _ip_geo_ranges(first_octet, start_int)`,
		`CREATE INDEX IF NOT EXISTS idx_geo_ranges_tag ON _ip_geo_ranges(source_tag)`,
		`CREATE TABLE IF NOT EXISTS _ip_geo_unmatched (
            start_int BIGINT NOT NULL,
            remaining BIGINT NOT NULL,
            prefix INT NOT NULL,
            exact BOOLEAN NOT NULL,
            fine_label TEXT NOT NULL,
            source_tag TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_geo_unmatched_tag ON _ip_geo_unmatched(source_tag)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
