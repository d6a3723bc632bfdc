// 包 sink：交叉匹配结果的输出端（文本文件、PostgreSQL、Redis 与扇出组合）
package sink

import (
	"bufio"
	"errors"
	"io"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/crossref"
	"os"
	"strconv"
)

// FormatRow：结果行 "<起始IP>,<结束IP>,<细标签>-<粗标签>"
func FormatRow(r crossref.Row) string {
	return cidr.Format(r.Start) + "," + cidr.Format(r.End) + "," + r.Label()
}

// FormatUnmatched：诊断行 "<细标签>-<起始IP>/<前缀> is not converted completely!"
func FormatUnmatched(u crossref.Unmatched) string {
	return u.Label + "-" + cidr.Format(u.Start) + "/" + strconv.Itoa(u.Prefix) + " is not converted completely!"
}

// RowWriter：逐行写出结果，带缓冲；调用方负责 Flush
type RowWriter struct {
	w *bufio.Writer
}

func NewRowWriter(w io.Writer) *RowWriter { return &RowWriter{w: bufio.NewWriterSize(w, 64*1024)} }

func (rw *RowWriter) WriteRow(r crossref.Row) error {
	_, err := rw.w.WriteString(FormatRow(r) + "\n")
	return err
}

func (rw *RowWriter) Flush() error { return rw.w.Flush() }

// DiagWriter：逐行写出未完全匹配的诊断信息
type DiagWriter struct {
	w *bufio.Writer
}

func NewDiagWriter(w io.Writer) *DiagWriter { return &DiagWriter{w: bufio.NewWriter(w)} }

func (dw *DiagWriter) WriteUnmatched(u crossref.Unmatched) error {
	_, err := dw.w.WriteString(FormatUnmatched(u) + "\n")
	return err
}

func (dw *DiagWriter) Flush() error { return dw.w.Flush() }

// Files：一次运行的结果文件与诊断文件
// 约束：生命周期限定在单次运行；Close 必须在所有退出路径调用（defer），会先刷新再关闭两个文件。
type Files struct {
	*RowWriter
	*DiagWriter
	csv, log *os.File
}

func Create(csvPath, logPath string) (*Files, error) {
	c, err := os.Create(csvPath)
	if err != nil {
		return nil, err
	}
	l, err := os.Create(logPath)
	if err != nil {
		c.Close()
		return nil, err
	}
	return &Files{RowWriter: NewRowWriter(c), DiagWriter: NewDiagWriter(l), csv: c, log: l}, nil
}

// Close：刷新并关闭，返回遇到的全部错误；重复调用安全
func (f *Files) Close() error {
	if f.csv == nil {
		return nil
	}
	err := errors.Join(
		f.RowWriter.Flush(),
		f.csv.Close(),
		f.DiagWriter.Flush(),
		f.log.Close(),
	)
	f.csv, f.log = nil, nil
	return err
}
