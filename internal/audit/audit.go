// 包 audit：检查原始 CIDR 块之间不同标签的重叠
// 区间表对这类重叠不做裁决，这里只负责发现与记录，不修改任何区间数据。
package audit

import (
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/logger"
	"net/netip"

	"github.com/gaissmai/bart"
)

const defaultKeep = 1000

// Conflict：新块 Prefix/Label 与已有块 Other/OtherLabel 重叠
type Conflict struct {
	Prefix     netip.Prefix
	Label      string
	Other      netip.Prefix
	OtherLabel string
}

// Auditor：基于前缀树记录已观察的块
// 约束：非并发安全，与构建过程同协程使用。
type Auditor struct {
	name      string
	tbl       bart.Table[string]
	keep      int
	count     int
	conflicts []Conflict
}

// New：name 用于日志区分数据集；keep 为保留的冲突明细上限，<=0 使用默认值
func New(name string, keep int) *Auditor {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Auditor{name: name, keep: keep}
}

// 文档注释：观察一个块
// 先在已有前缀中查找包含它的超网与被它包含的子网，标签不同即为冲突；每个块最多记录一条冲突。
// 块的主机位会被清零后参与比较。
func (a *Auditor) Observe(b cidr.Block, label string) bool {
	pfx := b.Prefix4()
	found := false
	var c Conflict
	for other, ol := range a.tbl.Supernets(pfx) {
		if ol != label {
			c, found = Conflict{Prefix: pfx, Label: label, Other: other, OtherLabel: ol}, true
			break
		}
	}
	if !found {
		for other, ol := range a.tbl.Subnets(pfx) {
			if ol != label {
				c, found = Conflict{Prefix: pfx, Label: label, Other: other, OtherLabel: ol}, true
				break
			}
		}
	}
	a.tbl.Insert(pfx, label)
	if !found {
		return false
	}
	a.count++
	if len(a.conflicts) < a.keep {
		a.conflicts = append(a.conflicts, c)
	}
	logger.L().Warn("overlap_conflict", "map", a.name, "prefix", c.Prefix.String(), "label", c.Label, "other", c.Other.String(), "other_label", c.OtherLabel)
	return true
}

// Count：冲突总数（不受保留上限影响）
func (a *Auditor) Count() int { return a.count }

func (a *Auditor) Conflicts() []Conflict { return a.conflicts }
