// 包 source：提供按标签分组的 CIDR 行数据源（目录文本、MaxMind ASN 库）
package source

import (
	"bufio"
	"io"
	"ip-geolocation/internal/logger"
	"os"
	"path/filepath"
	"strings"
)

// Group：一个标签及其原始 CIDR 行，通常对应一个文件
type Group struct {
	Label string
	Lines []string
}

// DirFilter：目录文件筛选规则
// Ext 为必需扩展名（空表示不限）；Include 非空时文件名需包含其中之一；名称包含 Exclude 任一子串则跳过。
type DirFilter struct {
	Ext     string
	Include []string
	Exclude []string
}

// OperatorFilter：运营商数据集的默认筛选（仅 IPv4 文本，名称含 6 的视为 IPv6 列表）
func OperatorFilter() DirFilter {
	return DirFilter{
		Ext:     ".txt",
		Include: []string{"cernet", "cmcc", "unicom", "chinanet"},
		Exclude: []string{"6"},
	}
}

func (f DirFilter) accept(name string) bool {
	if f.Ext != "" && filepath.Ext(name) != f.Ext {
		return false
	}
	for _, x := range f.Exclude {
		if x != "" && strings.Contains(name, x) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, x := range f.Include {
		if strings.Contains(name, x) {
			return true
		}
	}
	return false
}

// 文档注释：读取目录下所有符合规则的文件
// 约束：按目录列举顺序（文件名升序）返回，保证构建结果可复现；子目录跳过；标签取文件名去扩展名。
func ReadDir(dir string, f DirFilter) ([]Group, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Group
	for _, e := range ents {
		if e.IsDir() || !f.accept(e.Name()) {
			continue
		}
		lines, err := readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		label := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out = append(out, Group{Label: label, Lines: lines})
	}
	logger.L().Debug("source_dir_read", "dir", dir, "groups", len(out))
	return out, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}

// ReadLines：按行切分，去除行尾 CR；空行原样保留，由构建阶段跳过
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024), 1024*1024)
	var out []string
	for sc.Scan() {
		out = append(out, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
