// 包 crossref：以细粒度区间表为主，按粗粒度区间表的边界切分并组合标签
package crossref

import (
	"context"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/ivmap"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/metrics"
	"time"

	"golang.org/x/sync/errgroup"
)

// Row：一段完整匹配的输出区间 [Start, End]（闭区间）
type Row struct {
	Start  uint32
	End    uint32
	Fine   string
	Coarse string
}

func (r Row) Label() string { return r.Fine + "-" + r.Coarse }

// Unmatched：细粒度区间中无粗粒度覆盖的尾段
// Prefix 为由 Remaining 反推的前缀；Remaining 非 2 的幂时 Exact 为 false，Prefix 向上取整到覆盖它的最小块。
type Unmatched struct {
	Label     string
	Start     uint32
	Remaining uint64
	Prefix    int
	Exact     bool
}

type RowSink interface {
	WriteRow(Row) error
}

type DiagnosticSink interface {
	WriteUnmatched(Unmatched) error
}

// Lookup：粗粒度表的只读点查询能力
type Lookup interface {
	Query(addr uint32) (ivmap.Result, bool)
}

// Summary：一次遍历的统计
type Summary struct {
	Entries        int
	Rows           int
	Unmatched      int
	Inexact        int
	MatchedAddrs   uint64
	UnmatchedAddrs uint64
}

func (s *Summary) add(o Summary) {
	s.Entries += o.Entries
	s.Rows += o.Rows
	s.Unmatched += o.Unmatched
	s.Inexact += o.Inexact
	s.MatchedAddrs += o.MatchedAddrs
	s.UnmatchedAddrs += o.UnmatchedAddrs
}

// 文档注释：对单个细粒度条目做分段遍历
// 约束：游标从条目起点出发，每次消费 min(粗粒度剩余, 细粒度剩余)；遇到空隙记录一次未匹配并结束该条目。
// 输出严格按子区间升序。
func walkEntry(e ivmap.Entry, coarse Lookup, rows RowSink, diags DiagnosticSink, s *Summary) error {
	s.Entries++
	addr := uint64(e.Start)
	remaining := e.Length
	for remaining > 0 {
		res, ok := coarse.Query(uint32(addr))
		if !ok {
			prefix, exact := cidr.PrefixOf(remaining)
			u := Unmatched{Label: e.Label, Start: uint32(addr), Remaining: remaining, Prefix: prefix, Exact: exact}
			s.Unmatched++
			s.UnmatchedAddrs += remaining
			if !exact {
				s.Inexact++
			}
			return diags.WriteUnmatched(u)
		}
		consumed := min(res.Remaining, remaining)
		r := Row{Start: uint32(addr), End: uint32(addr + consumed - 1), Fine: e.Label, Coarse: res.Label}
		if err := rows.WriteRow(r); err != nil {
			return err
		}
		s.Rows++
		s.MatchedAddrs += consumed
		addr += consumed
		remaining -= consumed
	}
	return nil
}

// 文档注释：顺序遍历细粒度表
// 异常：仅在输出端写入失败时中止并返回错误；未覆盖区段是正常结果，不会中止遍历。
func Walk(fine *ivmap.Map, coarse Lookup, rows RowSink, diags DiagnosticSink) (Summary, error) {
	begin := time.Now()
	var s Summary
	var werr error
	fine.Ascend(func(e ivmap.Entry) bool {
		werr = walkEntry(e, coarse, rows, diags, &s)
		return werr == nil
	})
	record(s, begin)
	return s, werr
}

// buffer：分片内暂存的输出，按产生顺序回放
type buffer struct {
	events []event
}

type event struct {
	row       Row
	unmatched *Unmatched
}

func (b *buffer) WriteRow(r Row) error {
	b.events = append(b.events, event{row: r})
	return nil
}

func (b *buffer) WriteUnmatched(u Unmatched) error {
	b.events = append(b.events, event{unmatched: &u})
	return nil
}

// 文档注释：并行遍历细粒度表
// 背景：各条目的遍历互不依赖，只读粗粒度表；按连续分片分配给 workers 个协程，结果按分片顺序回放，
// 输出与 Walk 逐字节一致。
// 约束：workers <= 1 时退化为 Walk；粗粒度表在遍历期间不可修改。
func WalkConcurrent(ctx context.Context, fine *ivmap.Map, coarse Lookup, rows RowSink, diags DiagnosticSink, workers int) (Summary, error) {
	if workers <= 1 {
		return Walk(fine, coarse, rows, diags)
	}
	begin := time.Now()
	entries := fine.Entries()
	chunk := (len(entries) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}
	var parts [][]ivmap.Entry
	for i := 0; i < len(entries); i += chunk {
		parts = append(parts, entries[i:min(i+chunk, len(entries))])
	}
	bufs := make([]buffer, len(parts))
	sums := make([]Summary, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for i := range parts {
		g.Go(func() error {
			for _, e := range parts[i] {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := walkEntry(e, coarse, &bufs[i], &bufs[i], &sums[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	var s Summary
	for i := range bufs {
		for _, ev := range bufs[i].events {
			var err error
			if ev.unmatched != nil {
				err = diags.WriteUnmatched(*ev.unmatched)
			} else {
				err = rows.WriteRow(ev.row)
			}
			if err != nil {
				return s, err
			}
		}
		s.add(sums[i])
	}
	logger.L().Debug("crossref_parallel", "workers", workers, "chunks", len(parts))
	record(s, begin)
	return s, nil
}

func record(s Summary, begin time.Time) {
	metrics.RowsTotal.Add(float64(s.Rows))
	metrics.UnmatchedTotal.Add(float64(s.Unmatched))
	metrics.InexactPrefixTotal.Add(float64(s.Inexact))
	metrics.WalkDurationMs.Observe(float64(time.Since(begin).Milliseconds()))
	logger.L().Info("crossref_done", "entries", s.Entries, "rows", s.Rows, "unmatched", s.Unmatched, "inexact", s.Inexact, "matched_addrs", s.MatchedAddrs, "unmatched_addrs", s.UnmatchedAddrs)
}
