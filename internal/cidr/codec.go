// 包 cidr：CIDR 文本与整数区间的互相转换，是区间表与交叉匹配的最底层
package cidr

import (
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

// 地址空间大小（2^32），用于 /0 与越界判断
const Space uint64 = 1 << 32

var (
	ErrMalformed     = errors.New("malformed cidr")
	ErrRangeOverflow = errors.New("cidr range overflows ipv4 space")
)

// ParseError：携带原始行与失败原因，可通过 errors.Is 判断 ErrMalformed / ErrRangeOverflow
type ParseError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Block：一条 CIDR 记录解析后的起始地址与长度
// 约束：Length 使用 64 位计数，/0 的长度 2^32 可以精确表示
type Block struct {
	Start  uint32
	Prefix int
	Length uint64
}

// End：区间结束位置（开区间）
func (b Block) End() uint64 { return uint64(b.Start) + b.Length }

func (b Block) String() string { return Format(b.Start) + "/" + strconv.Itoa(b.Prefix) }

// Prefix4：转换为 netip.Prefix，供前缀树类结构使用；主机位会被清零
func (b Block) Prefix4() netip.Prefix {
	p := netip.PrefixFrom(Addr(b.Start), b.Prefix)
	return p.Masked()
}

// 文档注释：解析 "a.b.c.d/prefix"
// 约束：必须恰好一个 '/'；四段十进制字节 0..255 按大端拼接；前缀 0..32。
// 异常：格式错误返回包裹 ErrMalformed 的 *ParseError；Start+Length 超出 2^32 返回 ErrRangeOverflow。
func Parse(line string) (Block, error) {
	if strings.Count(line, "/") != 1 {
		return Block{}, &ParseError{Line: line, Reason: "need exactly one '/'", Err: ErrMalformed}
	}
	i := strings.IndexByte(line, '/')
	addr, err := parseQuad(line[:i])
	if err != nil {
		return Block{}, &ParseError{Line: line, Reason: err.Error(), Err: ErrMalformed}
	}
	p, err := strconv.Atoi(line[i+1:])
	if err != nil || !digits(line[i+1:]) || p < 0 || p > 32 {
		return Block{}, &ParseError{Line: line, Reason: "prefix not in 0..32", Err: ErrMalformed}
	}
	b := Block{Start: addr, Prefix: p, Length: Length(p)}
	if b.End() > Space {
		return Block{}, &ParseError{Line: line, Reason: "start + length exceeds 2^32", Err: ErrRangeOverflow}
	}
	return b, nil
}

func parseQuad(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, errors.New("need 4 octets")
	}
	var x uint32
	for _, part := range parts {
		if !digits(part) || len(part) > 3 {
			return 0, fmt.Errorf("bad octet %q", part)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("octet %q not in 0..255", part)
		}
		x = x<<8 | uint32(n)
	}
	return x, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Length：前缀对应的区间长度 2^(32-prefix)
func Length(prefix int) uint64 { return uint64(1) << uint(32-prefix) }

// Format：整数地址渲染为点分十进制
func Format(addr uint32) string {
	return Addr(addr).String()
}

func Addr(addr uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)})
}

// 文档注释：由剩余长度反推前缀
// 约束：仅 2 的幂可精确还原；其他长度向上取整到能覆盖它的最小块（前缀更短），exact 返回 false。
// 长度为 0 或超过 2^32 时返回 (-1, false)。
func PrefixOf(length uint64) (prefix int, exact bool) {
	if length == 0 || length > Space {
		return -1, false
	}
	exact = length&(length-1) == 0
	return 32 - bits.Len64(length-1), exact
}
