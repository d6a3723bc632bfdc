package sink

import (
	"context"
	"database/sql"
	"ip-geolocation/internal/crossref"
	"ip-geolocation/internal/logger"

	_ "github.com/lib/pq"
)

const (
	insertRangeSQL     = "INSERT INTO _ip_geo_ranges(start_int,end_int,first_octet,fine_label,coarse_label,source_tag) VALUES($1,$2,$3,$4,$5,$6)"
	insertUnmatchedSQL = "INSERT INTO _ip_geo_unmatched(start_int,remaining,prefix,exact,fine_label,source_tag) VALUES($1,$2,$3,$4,$5,$6)"
	pgBatch            = 5000
)

// Postgres：将结果与诊断写入数据库，按批提交事务
// 约束：同一 source_tag 的旧数据在 Open 时删除后重写；Close 提交最后一批。非并发安全。
type Postgres struct {
	ctx     context.Context
	db      *sql.DB
	tag     string
	tx      *sql.Tx
	stRange *sql.Stmt
	stMiss  *sql.Stmt
	pending int
	total   int
}

// OpenPostgres：开始一次导出；tag 用于区分版本（例如日期）
func OpenPostgres(ctx context.Context, db *sql.DB, tag string) (*Postgres, error) {
	if _, err := db.ExecContext(ctx, "DELETE FROM _ip_geo_ranges WHERE source_tag=$1", tag); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM _ip_geo_unmatched WHERE source_tag=$1", tag); err != nil {
		return nil, err
	}
	p := &Postgres{ctx: ctx, db: db, tag: tag}
	if err := p.begin(); err != nil {
		return nil, err
	}
	logger.L().Info("pg_export_begin", "tag", tag)
	return p, nil
}

func (p *Postgres) begin() error {
	tx, err := p.db.BeginTx(p.ctx, nil)
	if err != nil {
		return err
	}
	stRange, err := tx.PrepareContext(p.ctx, insertRangeSQL)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	stMiss, err := tx.PrepareContext(p.ctx, insertUnmatchedSQL)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	p.tx, p.stRange, p.stMiss = tx, stRange, stMiss
	return nil
}

func (p *Postgres) commit() error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Commit()
	p.tx, p.stRange, p.stMiss = nil, nil, nil
	p.pending = 0
	return err
}

func (p *Postgres) step() error {
	p.pending++
	p.total++
	if p.pending < pgBatch {
		return nil
	}
	logger.L().Info("pg_export_progress", "count", p.total)
	if err := p.commit(); err != nil {
		return err
	}
	return p.begin()
}

func (p *Postgres) WriteRow(r crossref.Row) error {
	if _, err := p.stRange.ExecContext(p.ctx, int64(r.Start), int64(r.End), int(r.Start>>24), r.Fine, r.Coarse, p.tag); err != nil {
		return err
	}
	return p.step()
}

func (p *Postgres) WriteUnmatched(u crossref.Unmatched) error {
	if _, err := p.stMiss.ExecContext(p.ctx, int64(u.Start), int64(u.Remaining), u.Prefix, u.Exact, u.Label, p.tag); err != nil {
		return err
	}
	return p.step()
}

// Close：提交剩余批次
func (p *Postgres) Close() error {
	err := p.commit()
	logger.L().Info("pg_export_done", "tag", p.tag, "count", p.total)
	return err
}

// Abort：放弃当前未提交批次
func (p *Postgres) Abort() error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Rollback()
	p.tx, p.stRange, p.stMiss = nil, nil, nil
	return err
}

// 文档注释：保留窗口清理
// 背景：以 source_tag 前缀分组，按各版本最近写入时间保留最新 keep 个，删除其余版本的结果与诊断。
// 返回：删除的结果行数。
func PrunePostgres(ctx context.Context, db *sql.DB, prefix string, keep int) (int64, error) {
	const q = `WITH versions AS (
            SELECT source_tag, max(created_at) AS last
            FROM _ip_geo_ranges WHERE source_tag LIKE $1 || '%'
            GROUP BY source_tag
          ), stale AS (
            SELECT source_tag FROM (
              SELECT source_tag, ROW_NUMBER() OVER(ORDER BY last DESC) AS rn FROM versions
            ) r WHERE r.rn > $2
          ), gone AS (
            DELETE FROM _ip_geo_unmatched WHERE source_tag IN (SELECT source_tag FROM stale)
          )
          DELETE FROM _ip_geo_ranges WHERE source_tag IN (SELECT source_tag FROM stale)`
	res, err := db.ExecContext(ctx, q, prefix, keep)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	logger.L().Info("pg_prune_done", "prefix", prefix, "keep", keep, "rows", n)
	return n, nil
}
