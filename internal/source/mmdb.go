package source

import (
	"ip-geolocation/internal/logger"
	"sort"
	"strconv"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// ASNLabel：ASN 到标签的映射；未映射的 ASN 使用 "AS<number>"
type ASNLabel map[uint]string

func (m ASNLabel) label(rec geoip2.ASN) string {
	if s, ok := m[rec.AutonomousSystemNumber]; ok && s != "" {
		return s
	}
	return "AS" + strconv.FormatUint(uint64(rec.AutonomousSystemNumber), 10)
}

// 文档注释：从 MaxMind ASN 库枚举 IPv4 网段作为粗粒度数据源
// 约束：跳过别名网段，只保留 32 位掩码的网络；only 非空时仅保留已映射的 ASN。
// 返回：按标签排序的分组，每行为标准 CIDR 文本。
func ReadASN(path string, labels ASNLabel, only bool) ([]Group, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	byLabel := make(map[string][]string)
	networks := db.Networks(maxminddb.SkipAliasedNetworks)
	count := 0
	for networks.Next() {
		var rec geoip2.ASN
		n, err := networks.Network(&rec)
		if err != nil {
			return nil, err
		}
		if _, bits := n.Mask.Size(); bits != 32 || n.IP.To4() == nil {
			continue
		}
		if rec.AutonomousSystemNumber == 0 {
			continue
		}
		if _, ok := labels[rec.AutonomousSystemNumber]; only && !ok {
			continue
		}
		l := labels.label(rec)
		byLabel[l] = append(byLabel[l], n.String())
		count++
	}
	if err := networks.Err(); err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(byLabel))
	for l, lines := range byLabel {
		out = append(out, Group{Label: l, Lines: lines})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	logger.L().Info("source_mmdb_read", "path", path, "networks", count, "groups", len(out))
	return out, nil
}
