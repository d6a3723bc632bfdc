// 包 builder：将按标签分组的原始 CIDR 行折叠为一张区间表
package builder

import (
	"context"
	"errors"
	"fmt"
	"ip-geolocation/internal/audit"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/ivmap"
	"ip-geolocation/internal/logger"
	"ip-geolocation/internal/metrics"
	"ip-geolocation/internal/source"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Policy：解析失败时的处理策略
type Policy int

const (
	// PolicyStrict：遇到第一条非法行即中止整批构建
	PolicyStrict Policy = iota
	// PolicySkip：跳过非法行并记录告警与计数
	PolicySkip
)

// ParsePolicy：解析 PARSE_POLICY 文本（strict|skip）
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "skip":
		return PolicySkip, nil
	}
	return PolicyStrict, fmt.Errorf("unknown parse policy %q", s)
}

func (p Policy) String() string {
	if p == PolicySkip {
		return "skip"
	}
	return "strict"
}

type Options struct {
	// Name 为数据集名称（coarse / fine），用于日志与指标标签
	Name   string
	Policy Policy
	// Audit 非空时，每个解析成功的块在插入前交给它检查重叠
	Audit *audit.Auditor
}

// Report：一次构建的统计
type Report struct {
	Groups    int
	Lines     int
	Blocks    int
	Skipped   int
	Entries   int
	Merges    int
	Replaced  int
	Conflicts int
}

// LineError：定位到标签与行号（从 1 开始）的解析错误
type LineError struct {
	Label string
	Line  int
	Err   error
}

func (e *LineError) Error() string { return fmt.Sprintf("%s:%d: %v", e.Label, e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// 文档注释：构建区间表
// 约束：按 groups 给定顺序、组内按行顺序插入；空行在解析前跳过。
// 异常：严格策略下返回 *LineError（可 errors.Is 到 cidr.ErrMalformed / cidr.ErrRangeOverflow）。
func Build(groups []source.Group, opt Options) (*ivmap.Map, Report, error) {
	l := logger.L()
	begin := time.Now()
	m := ivmap.New()
	var rep Report
	for _, g := range groups {
		rep.Groups++
		for i, raw := range g.Lines {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			rep.Lines++
			b, err := cidr.Parse(line)
			if err != nil {
				le := &LineError{Label: g.Label, Line: i + 1, Err: err}
				if opt.Policy == PolicyStrict || !isParseError(err) {
					l.Error("cidr_parse_error", "map", opt.Name, "label", g.Label, "line", i+1, "err", err)
					return nil, rep, le
				}
				rep.Skipped++
				metrics.BlocksSkippedTotal.WithLabelValues(opt.Name).Inc()
				l.Warn("cidr_skip", "map", opt.Name, "label", g.Label, "line", i+1, "err", err)
				continue
			}
			if opt.Audit != nil && opt.Audit.Observe(b, g.Label) {
				rep.Conflicts++
				metrics.OverlapConflictsTotal.WithLabelValues(opt.Name).Inc()
			}
			m.Insert(b.Start, b.Length, g.Label)
			rep.Blocks++
		}
		l.Debug("map_group_done", "map", opt.Name, "label", g.Label, "lines", len(g.Lines))
	}
	st := m.Stats()
	rep.Entries = m.Len()
	rep.Merges = st.Merges
	rep.Replaced = st.Replaced
	metrics.BlocksParsedTotal.WithLabelValues(opt.Name).Add(float64(rep.Blocks))
	metrics.MergesTotal.WithLabelValues(opt.Name).Add(float64(rep.Merges))
	metrics.MapEntries.WithLabelValues(opt.Name).Set(float64(rep.Entries))
	metrics.BuildDurationMs.WithLabelValues(opt.Name).Observe(float64(time.Since(begin).Milliseconds()))
	if rep.Replaced > 0 {
		l.Warn("map_same_start_replaced", "map", opt.Name, "count", rep.Replaced)
	}
	l.Info("map_build_done", "map", opt.Name, "groups", rep.Groups, "blocks", rep.Blocks, "skipped", rep.Skipped, "entries", rep.Entries, "merges", rep.Merges, "conflicts", rep.Conflicts)
	return m, rep, nil
}

func isParseError(err error) bool {
	return errors.Is(err, cidr.ErrMalformed) || errors.Is(err, cidr.ErrRangeOverflow)
}

// Pair：粗、细两张区间表及其构建统计
type Pair struct {
	Coarse, Fine             *ivmap.Map
	CoarseReport, FineReport Report
}

// 文档注释：并行构建粗、细两张区间表
// 背景：两张表来源独立、无共享可变状态，各占一个协程；任一失败返回该错误。
func BuildPair(ctx context.Context, coarse, fine []source.Group, coarseOpt, fineOpt Options) (*Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p Pair
	var g errgroup.Group
	g.Go(func() error {
		m, rep, err := Build(coarse, coarseOpt)
		if err != nil {
			return fmt.Errorf("build %s: %w", coarseOpt.Name, err)
		}
		p.Coarse, p.CoarseReport = m, rep
		return nil
	})
	g.Go(func() error {
		m, rep, err := Build(fine, fineOpt)
		if err != nil {
			return fmt.Errorf("build %s: %w", fineOpt.Name, err)
		}
		p.Fine, p.FineReport = m, rep
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &p, nil
}
