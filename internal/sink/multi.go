package sink

import "ip-geolocation/internal/crossref"

// Multi：按顺序扇出到多个输出端，任一失败立即返回
type Multi struct {
	rows  []crossref.RowSink
	diags []crossref.DiagnosticSink
}

func NewMulti() *Multi { return &Multi{} }

// AddRows / AddDiags：追加输出端，nil 忽略
func (m *Multi) AddRows(s crossref.RowSink) *Multi {
	if s != nil {
		m.rows = append(m.rows, s)
	}
	return m
}

func (m *Multi) AddDiags(s crossref.DiagnosticSink) *Multi {
	if s != nil {
		m.diags = append(m.diags, s)
	}
	return m
}

func (m *Multi) WriteRow(r crossref.Row) error {
	for _, s := range m.rows {
		if err := s.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) WriteUnmatched(u crossref.Unmatched) error {
	for _, s := range m.diags {
		if err := s.WriteUnmatched(u); err != nil {
			return err
		}
	}
	return nil
}
