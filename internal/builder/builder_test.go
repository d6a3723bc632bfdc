package builder

import (
	"context"
	"errors"
	"testing"

	"ip-geolocation/internal/audit"
	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/ivmap"
	"ip-geolocation/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMergesAcrossLines(t *testing.T) {
	groups := []source.Group{
		{Label: "cmcc", Lines: []string{"0.0.0.0/25", "0.0.0.192/26", "", "  ", "0.0.0.128/26"}},
		{Label: "unicom", Lines: []string{"0.0.1.0/24", "0.0.2.0/24"}},
	}
	m, rep, err := Build(groups, Options{Name: "coarse"})
	require.NoError(t, err)
	assert.Equal(t, []ivmap.Entry{
		{Start: 0, Length: 256, Label: "cmcc"},
		{Start: 256, Length: 512, Label: "unicom"},
	}, m.Entries())
	assert.Equal(t, 2, rep.Groups)
	assert.Equal(t, 5, rep.Lines)
	assert.Equal(t, 5, rep.Blocks)
	assert.Equal(t, 2, rep.Entries)
	assert.Zero(t, rep.Skipped)
}

func TestBuildStrictFails(t *testing.T) {
	groups := []source.Group{{Label: "cmcc", Lines: []string{"1.0.0.0/8", "1.2.3/8"}}}
	_, _, err := Build(groups, Options{Name: "coarse", Policy: PolicyStrict})
	require.Error(t, err)
	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "cmcc", le.Label)
	assert.Equal(t, 2, le.Line)
	assert.True(t, errors.Is(err, cidr.ErrMalformed))
}

func TestBuildStrictOverflow(t *testing.T) {
	groups := []source.Group{{Label: "x", Lines: []string{"255.0.0.0/0"}}}
	_, _, err := Build(groups, Options{Name: "coarse"})
	assert.True(t, errors.Is(err, cidr.ErrRangeOverflow))
}

func TestBuildSkipPolicy(t *testing.T) {
	groups := []source.Group{{Label: "cmcc", Lines: []string{"1.0.0.0/8", "bad", "1.0.0.0/33", "2.0.0.0/8"}}}
	m, rep, err := Build(groups, Options{Name: "coarse", Policy: PolicySkip})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, rep.Blocks)
	assert.Equal(t, []ivmap.Entry{{Start: 1 << 24, Length: 2 << 24, Label: "cmcc"}}, m.Entries())
}

func TestBuildAudit(t *testing.T) {
	groups := []source.Group{
		{Label: "110000", Lines: []string{"10.0.0.0/8"}},
		{Label: "120000", Lines: []string{"10.1.0.0/16"}},
	}
	a := audit.New("fine", 0)
	_, rep, err := Build(groups, Options{Name: "fine", Audit: a})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Conflicts)
	assert.Equal(t, 1, a.Count())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)
	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
}

func TestBuildPair(t *testing.T) {
	coarse := []source.Group{{Label: "ISP1", Lines: []string{"0.0.0.0/24"}}}
	fine := []source.Group{{Label: "CityA", Lines: []string{"0.0.0.0/25"}}}
	p, err := BuildPair(context.Background(), coarse, fine, Options{Name: "coarse"}, Options{Name: "fine"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Coarse.Len())
	assert.Equal(t, 1, p.Fine.Len())
	assert.Equal(t, 1, p.FineReport.Blocks)
}

func TestBuildPairError(t *testing.T) {
	coarse := []source.Group{{Label: "ISP1", Lines: []string{"0.0.0.0/24"}}}
	fine := []source.Group{{Label: "CityA", Lines: []string{"nope"}}}
	_, err := BuildPair(context.Background(), coarse, fine, Options{Name: "coarse"}, Options{Name: "fine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build fine")
}
