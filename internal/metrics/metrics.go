package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BlocksParsedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipgeo_blocks_parsed_total",
		Help: "Total CIDR blocks parsed and inserted, by map",
	}, []string{"map"})
	BlocksSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipgeo_blocks_skipped_total",
		Help: "Total malformed CIDR lines skipped under the skip policy, by map",
	}, []string{"map"})
	MergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipgeo_merges_total",
		Help: "Total same-label merges performed on insert, by map",
	}, []string{"map"})
	MapEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ipgeo_map_entries",
		Help: "Number of disjoint entries in a built map",
	}, []string{"map"})
	OverlapConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipgeo_overlap_conflicts_total",
		Help: "Total different-label overlaps seen by the audit, by map",
	}, []string{"map"})
	BuildDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipgeo_build_duration_ms",
		Help:    "Map build duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	}, []string{"map"})
	RowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ipgeo_rows_total",
		Help: "Total matched rows emitted by the cross reference walk",
	})
	UnmatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ipgeo_unmatched_total",
		Help: "Total fine ranges with an uncovered tail",
	})
	InexactPrefixTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ipgeo_inexact_prefix_total",
		Help: "Total unmatched tails whose length is not a power of two",
	})
	WalkDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ipgeo_walk_duration_ms",
		Help:    "Cross reference walk duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
)

func init() {
	prometheus.MustRegister(BlocksParsedTotal)
	prometheus.MustRegister(BlocksSkippedTotal)
	prometheus.MustRegister(MergesTotal)
	prometheus.MustRegister(MapEntries)
	prometheus.MustRegister(OverlapConflictsTotal)
	prometheus.MustRegister(BuildDurationMs)
	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(UnmatchedTotal)
	prometheus.MustRegister(InexactPrefixTotal)
	prometheus.MustRegister(WalkDurationMs)
}

// 文档注释：将默认注册表写入文本文件
// 背景：批处理进程不常驻，由 node_exporter textfile collector 读取；path 为空时不写。
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
