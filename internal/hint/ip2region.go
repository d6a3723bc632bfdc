// 包 hint：为未匹配区段附加 ip2region 的运营商提示，仅写入调试日志，不改变诊断输出
package hint

import (
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/crossref"
	"log/slog"
	"strings"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

// Searcher：按 IP 文本返回 "国家|区域|省份|城市|ISP" 形式的区域串
type Searcher interface {
	SearchByStr(ip string) (string, error)
}

type Hinter struct {
	s Searcher
}

// Open：打开 ip2region v4 xdb 文件（文件查询模式）
func Open(path string) (*Hinter, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, path)
	if err != nil {
		return nil, err
	}
	return &Hinter{s: s}, nil
}

func New(s Searcher) *Hinter { return &Hinter{s: s} }

// ISP：返回地址对应的运营商字段；无结果或未知返回空串
func (h *Hinter) ISP(addr uint32) string {
	region, err := h.s.SearchByStr(cidr.Format(addr))
	if err != nil || region == "" {
		return ""
	}
	parts := strings.Split(region, "|")
	if len(parts) < 5 {
		return ""
	}
	return clean(parts[4])
}

func clean(s string) string {
	if s == "0" || s == "" || strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}

// Annotate：包装诊断输出端，转发前在调试日志中记录 ip2region 的运营商提示
type Annotate struct {
	Next   crossref.DiagnosticSink
	Hinter *Hinter
	Log    *slog.Logger
}

func (a *Annotate) WriteUnmatched(u crossref.Unmatched) error {
	if a.Hinter != nil {
		if isp := a.Hinter.ISP(u.Start); isp != "" {
			a.Log.Debug("unmatched_hint", "label", u.Label, "start", cidr.Format(u.Start), "remaining", u.Remaining, "isp", isp)
		}
	}
	return a.Next.WriteUnmatched(u)
}
