package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ip-geolocation/internal/crossref"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rowA = crossref.Row{Start: 0, End: 127, Fine: "CityA", Coarse: "ISP1"}
	rowB = crossref.Row{Start: 128, End: 255, Fine: "CityA", Coarse: "ISP2"}
	miss = crossref.Unmatched{Label: "CityB", Start: 0x0a000000, Remaining: 256, Prefix: 24, Exact: true}
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.0.0.0,0.0.0.127,CityA-ISP1", FormatRow(rowA))
	assert.Equal(t, "CityB-10.0.0.0/24 is not converted completely!", FormatUnmatched(miss))
}

func TestRowWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRowWriter(&buf)
	require.NoError(t, w.WriteRow(rowA))
	require.NoError(t, w.WriteRow(rowB))
	assert.Empty(t, buf.String())
	require.NoError(t, w.Flush())
	assert.Equal(t, "0.0.0.0,0.0.0.127,CityA-ISP1\n0.0.0.128,0.0.0.255,CityA-ISP2\n", buf.String())
}

func TestFilesCloseFlushes(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")
	logPath := filepath.Join(dir, "out.log")
	f, err := Create(csvPath, logPath)
	require.NoError(t, err)
	require.NoError(t, f.WriteRow(rowA))
	require.NoError(t, f.WriteUnmatched(miss))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0,0.0.0.127,CityA-ISP1\n", string(b))
	b, err = os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "CityB-10.0.0.0/24 is not converted completely!\n", string(b))
}

func TestCreateBadPath(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "missing", "out.csv"), filepath.Join(dir, "out.log"))
	assert.Error(t, err)
}

type failing struct{}

func (failing) WriteRow(crossref.Row) error             { return errors.New("boom") }
func (failing) WriteUnmatched(crossref.Unmatched) error { return errors.New("boom") }

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	ra, rb := NewRowWriter(&a), NewRowWriter(&b)
	var d bytes.Buffer
	dw := NewDiagWriter(&d)
	m := NewMulti().AddRows(ra).AddRows(rb).AddRows(nil).AddDiags(dw)
	require.NoError(t, m.WriteRow(rowA))
	require.NoError(t, m.WriteUnmatched(miss))
	require.NoError(t, ra.Flush())
	require.NoError(t, rb.Flush())
	require.NoError(t, dw.Flush())
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, d.String(), "CityB-10.0.0.0/24")

	bad := NewMulti().AddRows(failing{}).AddRows(ra).AddDiags(failing{})
	assert.Error(t, bad.WriteRow(rowB))
	assert.Error(t, bad.WriteUnmatched(miss))
}

func TestRedisMember(t *testing.T) {
	m := RedisMember(rowB)
	assert.Equal(t, "128,255,CityA-ISP2", m)
	start, end, label, err := ParseRedisMember(m)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), start)
	assert.Equal(t, uint32(255), end)
	assert.Equal(t, "CityA-ISP2", label)

	_, _, label, err = ParseRedisMember("1,2,a,b")
	require.NoError(t, err)
	assert.Equal(t, "a,b", label)

	_, _, _, err = ParseRedisMember("1,2")
	assert.Error(t, err)
	_, _, _, err = ParseRedisMember("x,2,a")
	assert.Error(t, err)
}
