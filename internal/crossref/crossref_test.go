package crossref

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"ip-geolocation/internal/cidr"
	"ip-geolocation/internal/ivmap"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	rows      []Row
	unmatched []Unmatched
	failAt    int
}

func (c *collector) WriteRow(r Row) error {
	if c.failAt > 0 && len(c.rows)+1 == c.failAt {
		return errors.New("disk full")
	}
	c.rows = append(c.rows, r)
	return nil
}

func (c *collector) WriteUnmatched(u Unmatched) error {
	c.unmatched = append(c.unmatched, u)
	return nil
}

func mapOf(t *testing.T, blocks map[string][]string) *ivmap.Map {
	t.Helper()
	m := ivmap.New()
	for label, lines := range blocks {
		for _, line := range lines {
			b, err := cidr.Parse(line)
			require.NoError(t, err)
			m.Insert(b.Start, b.Length, label)
		}
	}
	return m
}

func ip(t *testing.T, s string) uint32 {
	t.Helper()
	b, err := cidr.Parse(s + "/32")
	require.NoError(t, err)
	return b.Start
}

func TestWalkSingleRow(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/24"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/25"}})
	var c collector
	s, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	want := []Row{{Start: 0, End: ip(t, "0.0.0.127"), Fine: "CityA", Coarse: "ISP1"}}
	if diff := cmp.Diff(want, c.rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, c.unmatched)
	assert.Equal(t, Summary{Entries: 1, Rows: 1, MatchedAddrs: 128}, s)
	assert.Equal(t, "CityA-ISP1", c.rows[0].Label())
}

func TestWalkSplitAcrossCoarseBlocks(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/25"}, "ISP2": {"0.0.0.128/25"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/24"}})
	var c collector
	_, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	want := []Row{
		{Start: 0, End: ip(t, "0.0.0.127"), Fine: "CityA", Coarse: "ISP1"},
		{Start: ip(t, "0.0.0.128"), End: ip(t, "0.0.0.255"), Fine: "CityA", Coarse: "ISP2"},
	}
	if diff := cmp.Diff(want, c.rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkUnmatchedWholeBlock(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"10.0.0.0/8"}})
	fine := mapOf(t, map[string][]string{"CityA": {"192.168.0.0/16"}})
	var c collector
	s, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	assert.Empty(t, c.rows)
	require.Len(t, c.unmatched, 1)
	assert.Equal(t, Unmatched{Label: "CityA", Start: ip(t, "192.168.0.0"), Remaining: 1 << 16, Prefix: 16, Exact: true}, c.unmatched[0])
	assert.Equal(t, 1, s.Unmatched)
	assert.Equal(t, uint64(1<<16), s.UnmatchedAddrs)
}

func TestWalkUnmatchedTail(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/26"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/24"}})
	var c collector
	s, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	require.Len(t, c.rows, 1)
	assert.Equal(t, ip(t, "0.0.0.63"), c.rows[0].End)
	require.Len(t, c.unmatched, 1)
	u := c.unmatched[0]
	assert.Equal(t, ip(t, "0.0.0.64"), u.Start)
	assert.Equal(t, uint64(192), u.Remaining)
	assert.Equal(t, 24, u.Prefix)
	assert.False(t, u.Exact)
	assert.Equal(t, 1, s.Inexact)
}

func TestWalkStopsAtFirstGap(t *testing.T) {
	// 空隙之后的粗粒度覆盖不再参与该条目的匹配
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/26", "0.0.0.128/25"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/24"}})
	var c collector
	_, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	assert.Len(t, c.rows, 1)
	require.Len(t, c.unmatched, 1)
	assert.Equal(t, uint64(192), c.unmatched[0].Remaining)
}

func TestWalkOrdering(t *testing.T) {
	coarse := mapOf(t, map[string][]string{
		"ISP1": {"1.0.0.0/9"},
		"ISP2": {"1.128.0.0/9"},
		"ISP3": {"3.0.0.0/8"},
	})
	fine := mapOf(t, map[string][]string{
		"CityB": {"3.0.0.0/16"},
		"CityA": {"1.0.0.0/8"},
	})
	var c collector
	_, err := Walk(fine, coarse, &c, &c)
	require.NoError(t, err)
	require.Len(t, c.rows, 3)
	for i := 1; i < len(c.rows); i++ {
		assert.Less(t, c.rows[i-1].End, c.rows[i].Start)
	}
	assert.Equal(t, "CityB-ISP3", c.rows[2].Label())
}

func TestWalkSinkError(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/25"}, "ISP2": {"0.0.0.128/25"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/24"}})
	c := collector{failAt: 2}
	_, err := Walk(fine, coarse, &c, &c)
	assert.EqualError(t, err, "disk full")
	assert.Len(t, c.rows, 1)
}

func TestWalkConcurrentMatchesWalk(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	coarse := ivmap.New()
	fine := ivmap.New()
	for i := 0; i < 500; i++ {
		start := uint32(rnd.Intn(1<<16)) << 12
		coarse.Insert(start, uint64(1)<<uint(8+rnd.Intn(6)), fmt.Sprintf("ISP%d", rnd.Intn(4)))
	}
	for i := 0; i < 800; i++ {
		start := uint32(rnd.Intn(1<<18)) << 10
		fine.Insert(start, uint64(1)<<uint(6+rnd.Intn(8)), fmt.Sprintf("City%d", rnd.Intn(20)))
	}
	var seq collector
	s1, err := Walk(fine, coarse, &seq, &seq)
	require.NoError(t, err)
	for _, workers := range []int{0, 2, 3, 8, 10000} {
		var par collector
		s2, err := WalkConcurrent(context.Background(), fine, coarse, &par, &par, workers)
		require.NoError(t, err)
		assert.Equal(t, s1, s2, "workers=%d", workers)
		if diff := cmp.Diff(seq.rows, par.rows); diff != "" {
			t.Fatalf("workers=%d rows mismatch (-seq +par):\n%s", workers, diff)
		}
		if diff := cmp.Diff(seq.unmatched, par.unmatched); diff != "" {
			t.Fatalf("workers=%d unmatched mismatch (-seq +par):\n%s", workers, diff)
		}
	}
}

func TestWalkConcurrentCanceled(t *testing.T) {
	coarse := mapOf(t, map[string][]string{"ISP1": {"0.0.0.0/24"}})
	fine := mapOf(t, map[string][]string{"CityA": {"0.0.0.0/25"}, "CityB": {"0.0.1.0/25"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c collector
	_, err := WalkConcurrent(ctx, fine, coarse, &c, &c, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.rows)
}

func TestWalkEmptyFine(t *testing.T) {
	var c collector
	s, err := WalkConcurrent(context.Background(), ivmap.New(), ivmap.New(), &c, &c, 4)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, s)
}
