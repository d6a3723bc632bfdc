// 包 ivmap：有序、互不重叠的带标签 IPv4 区间表，插入时合并相邻/重叠的同标签区间
package ivmap

import (
	"github.com/google/btree"
)

const degree = 32

// Entry：一条存储区间 [Start, Start+Length)
type Entry struct {
	Start  uint32
	Length uint64
	Label  string
}

func (e Entry) End() uint64 { return uint64(e.Start) + e.Length }

// Last：区间最后一个地址（闭区间端点）
func (e Entry) Last() uint32 { return uint32(e.End() - 1) }

// Result：点查询结果，Remaining 为查询地址到区间结尾的剩余长度
type Result struct {
	Remaining uint64
	Label     string
}

// Stats：构建期统计
type Stats struct {
	Inserts  int
	Merges   int
	Replaced int
}

// Map：按 Start 排序的区间表
// 约束：构建阶段单协程写入；构建完成后只读，Query/Covers/Ascend 可并发调用。
type Map struct {
	tree  *btree.BTreeG[Entry]
	stats Stats
}

func New() *Map {
	return &Map{tree: btree.NewG(degree, func(a, b Entry) bool { return a.Start < b.Start })}
}

func (m *Map) Len() int { return m.tree.Len() }

func (m *Map) Stats() Stats { return m.stats }

// predecessor：Start <= addr 的最大条目
func (m *Map) predecessor(addr uint32) (Entry, bool) {
	var out Entry
	var ok bool
	m.tree.DescendLessOrEqual(Entry{Start: addr}, func(e Entry) bool {
		out, ok = e, true
		return false
	})
	return out, ok
}

// successor：Start >= addr 的最小条目
func (m *Map) successor(addr uint32) (Entry, bool) {
	var out Entry
	var ok bool
	m.tree.AscendGreaterOrEqual(Entry{Start: addr}, func(e Entry) bool {
		out, ok = e, true
		return false
	})
	return out, ok
}

// 文档注释：插入区间并与同标签邻居合并
// 约束：候选区间在合并期间不在树中；左合并吸收前驱、右合并吸收后继，循环直到边界不再变化，
// 单次插入可以桥接多段已有的同标签区间。
// 不同标签的重叠不做处理：新区间直接写入；若起点与不同标签条目相同，按键覆盖并计入 Stats.Replaced。
func (m *Map) Insert(start uint32, length uint64, label string) {
	if length == 0 {
		return
	}
	m.stats.Inserts++
	cand := Entry{Start: start, Length: length, Label: label}
	for {
		changed := false
		if pred, ok := m.predecessor(cand.Start); ok && pred.Label == label && pred.End() >= uint64(cand.Start) {
			m.tree.Delete(pred)
			end := max(pred.End(), cand.End())
			if pred.Start != cand.Start || end != cand.End() {
				changed = true
			}
			cand = Entry{Start: pred.Start, Length: end - uint64(pred.Start), Label: label}
			m.stats.Merges++
		}
		if succ, ok := m.successor(cand.Start); ok && succ.Label == label && cand.End() >= uint64(succ.Start) {
			m.tree.Delete(succ)
			end := max(cand.End(), succ.End())
			cand.Length = end - uint64(cand.Start)
			changed = true
			m.stats.Merges++
		}
		if !changed {
			break
		}
	}
	if _, replaced := m.tree.ReplaceOrInsert(cand); replaced {
		m.stats.Replaced++
	}
}

// 文档注释：点查询
// 返回：地址落在某区间内时返回剩余长度与标签；落在空隙返回 false。
func (m *Map) Query(addr uint32) (Result, bool) {
	pred, ok := m.predecessor(addr)
	if !ok || uint64(addr) >= pred.End() {
		return Result{}, false
	}
	return Result{Remaining: pred.End() - uint64(addr), Label: pred.Label}, true
}

// Covers：区间 [start, start+length) 是否整体落在同一条目内
func (m *Map) Covers(start uint32, length uint64) (string, bool) {
	r, ok := m.Query(start)
	if !ok || r.Remaining < length {
		return "", false
	}
	return r.Label, true
}

// Ascend：按起点升序遍历，fn 返回 false 时停止
func (m *Map) Ascend(fn func(Entry) bool) {
	m.tree.Ascend(func(e Entry) bool { return fn(e) })
}

func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, m.tree.Len())
	m.tree.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}
