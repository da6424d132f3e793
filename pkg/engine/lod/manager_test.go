package lod_test

import (
	"math"
	"sort"
	"testing"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/clustering"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
	"github.com/lintang-b-s/songmap/pkg/engine/lod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newManager(t *testing.T, size, radius float64) *lod.SongPointManager {
	t.Helper()
	cfg := lod.DefaultConfig()
	cfg.Width, cfg.Height = size, size
	cfg.SearchRadius = radius

	m, err := lod.NewSongPointManager(cfg, logr.Discard())
	require.NoError(t, err)
	return m
}

// newGridManager 10x10 songs at (5+10i, 5+10j) with id 10i+j.
func newGridManager(t *testing.T) *lod.SongPointManager {
	t.Helper()
	m := newManager(t, 100, math.Inf(1))
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			require.NoError(t, m.Add(5+10*float64(i), 5+10*float64(j), 10*i+j))
		}
	}
	require.NoError(t, m.Cluster())
	return m
}

func pointIDs(points []datastructure.SongPoint) []int {
	ids := make([]int, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.GetAllIDs()...)
	}
	sort.Ints(ids)
	return ids
}

func TestManagerRoundTrip(t *testing.T) {
	m := newManager(t, 200, 5)
	require.NoError(t, m.Add(0, 0, 1))
	require.NoError(t, m.Add(1, 1, 2))
	require.NoError(t, m.Add(100, 100, 3))

	require.NoError(t, m.Cluster())
	assert.True(t, m.IsClustered())
	assert.Equal(t, 1, m.MaxLevel())
	assert.Equal(t, 3, m.Count(0))
	assert.Equal(t, 2, m.Count(1))
	assert.Equal(t, 3, m.Len())

	m.SetLevel(1)
	assert.Equal(t, []int{1, 2, 3}, pointIDs(m.Points()))
	assert.Len(t, m.Points(), 2)
}

func TestManagerTopLevelHasNoParents(t *testing.T) {
	m := newManager(t, 200, 5)
	require.NoError(t, m.Add(0, 0, 1))
	require.NoError(t, m.Add(1, 1, 2))
	require.NoError(t, m.Add(100, 100, 3))
	require.NoError(t, m.Cluster())

	m.SetLevel(m.MaxLevel())
	for _, p := range m.Points() {
		assert.True(t, p.Parent().IsNil(), "point %v has a parent", p.GetAllIDs())
	}

	assert.Equal(t, 2, m.SelectIDs([]int{1, 2}))
	for _, p := range m.Points() {
		assert.Equal(t, p.LeafCount() == 2, p.IsSelected())
	}
}

func TestManagerErrors(t *testing.T) {
	_, err := lod.NewSongPointManager(lod.Config{Width: 0, Height: 10, SearchRadius: 1, MinPoints: 2}, logr.Discard())
	assert.ErrorIs(t, err, lod.ErrInvalidBounds)

	_, err = lod.NewSongPointManager(lod.Config{Width: 10, Height: 10, SearchRadius: -1, MinPoints: 2}, logr.Discard())
	assert.ErrorIs(t, err, clustering.ErrInvalidSearchRadius)

	m := newManager(t, 100, 10)
	require.NoError(t, m.Add(1, 1, 1))
	assert.ErrorIs(t, m.Add(2, 2, 1), lod.ErrDuplicateID)

	require.NoError(t, m.Cluster())
	assert.ErrorIs(t, m.Cluster(), lod.ErrAlreadyClustered)
	assert.ErrorIs(t, m.Add(3, 3, 3), lod.ErrAlreadyClustered)

	p, ok := m.GetPoint(1)
	require.True(t, ok)
	assert.Equal(t, datastructure.NewPoint(1, 1), p.Position())
	_, ok = m.GetPoint(2)
	assert.False(t, ok)
}

func TestManagerLevelClamp(t *testing.T) {
	m := newGridManager(t)
	maxLevel := m.MaxLevel()
	require.Equal(t, 7, maxLevel, "100 songs halve down to one point in 7 passes")

	assert.Equal(t, 0, m.SetLevel(-5))
	assert.Equal(t, 0, m.Level())
	assert.True(t, m.IsMinLevel())
	assert.Equal(t, 0, m.DecreaseLevel())

	assert.Equal(t, maxLevel, m.SetLevel(maxLevel+5))
	assert.Equal(t, maxLevel, m.Level())
	assert.True(t, m.IsMaxLevel())
	assert.Equal(t, maxLevel, m.IncreaseLevel())

	assert.Equal(t, maxLevel-1, m.DecreaseLevel())
	assert.False(t, m.IsMaxLevel())
	assert.Equal(t, 1, m.Count(maxLevel+3))
	assert.Equal(t, 100, m.Count(-1))
}

func TestManagerGetPointsInWindow(t *testing.T) {
	rd := rand.New(rand.NewSource(21))
	m := newManager(t, 1000, 30)
	positions := make(map[int]datastructure.Point)
	for i := 0; i < 2000; i++ {
		p := datastructure.NewPoint(rd.Float64()*1000, rd.Float64()*1000)
		positions[i] = p
		require.NoError(t, m.Add(p.X, p.Y, i))
	}
	require.NoError(t, m.Cluster())

	for i := 0; i < 50; i++ {
		x, y := rd.Float64()*800, rd.Float64()*800
		w, h := rd.Float64()*200, rd.Float64()*200
		window := datastructure.NewRectangle(x, y, w, h)

		expected := make([]int, 0)
		for id, p := range positions {
			if window.Contains(p) {
				expected = append(expected, id)
			}
		}
		sort.Ints(expected)
		assert.Equal(t, expected, pointIDs(m.GetPointsInWindow(x, y, w, h, 0)))
	}

	all := m.GetPointsInWindow(0, 0, 1000, 1000, 1)
	assert.Len(t, all, m.Count(1), "offset queries the next level")
	assert.Len(t, m.GetPointsInWindow(0, 0, 1000, 1000, -3), 2000, "offset is clamped")
}

func TestManagerNegativeWindowIsEmpty(t *testing.T) {
	m := newGridManager(t)

	assert.Empty(t, m.GetPointsInWindow(50, 50, -30, -30, 0))
	assert.Empty(t, m.GetPointsInWindow(0, 0, 100, -1, 0))
	assert.Equal(t, 0, m.SelectInWindow(100, 100, -100, -100))
	assert.Empty(t, m.GetSelectedIDs())
}

func TestManagerWindowEdgeInclusive(t *testing.T) {
	m := newGridManager(t)
	found := m.GetPointsInWindow(0, 0, 15, 5, 0)
	assert.Equal(t, []int{0, 10}, pointIDs(found), "points on the right and top edge are inside")
}

func TestManagerSelection(t *testing.T) {
	m := newGridManager(t)

	assert.Equal(t, 4, m.SelectInWindow(0, 0, 20, 20))
	assert.Equal(t, []int{0, 1, 10, 11}, m.GetSelectedIDs())
	assert.Len(t, m.GetSelected(), 4)

	m.ClearSelection()
	assert.Empty(t, m.GetSelectedIDs())

	m.SetLevel(2)
	cluster := m.Points()[0]
	expected := cluster.GetAllIDs()
	sort.Ints(expected)
	require.Len(t, expected, 4)

	pos := cluster.Position()
	assert.Equal(t, 1, m.SelectInWindow(pos.X, pos.Y, 0, 0))
	assert.Equal(t, expected, m.GetSelectedIDs(), "selecting a cluster selects all of its songs")

	m.ClearSelection()
	assert.Equal(t, 3, m.SelectIDs([]int{42, 7, 99, 1000}))
	assert.Equal(t, []int{7, 42, 99}, m.GetSelectedIDs())
}

func TestManagerRemoveSelection(t *testing.T) {
	m := newGridManager(t)

	m.SelectIDs([]int{1, 2, 3})
	m.RemoveSelection()

	assert.Empty(t, m.GetSelectedIDs(), "removed songs are not reported as selected")
	for _, id := range []int{1, 2, 3} {
		p, _ := m.GetPoint(id)
		assert.True(t, p.IsRemoved())
	}
	p, _ := m.GetPoint(4)
	assert.False(t, p.IsRemoved())

	visible := m.GetPointsInWindow(0, 0, 100, 100, 0)
	assert.Len(t, visible, 97)

	m.SetLevel(m.MaxLevel())
	top := m.Points()
	require.Len(t, top, 1)
	assert.Len(t, top[0].GetAllIDs(), 97)

	m.ShowRemoved()
	assert.Equal(t, []int{1, 2, 3}, m.GetSelectedIDs())
	assert.Len(t, top[0].GetAllIDs(), 100)

	m.ClearSelection()
	assert.Empty(t, m.GetSelectedIDs())
}

func TestManagerMarkHidden(t *testing.T) {
	m := newGridManager(t)

	m.MarkHidden([]int{5, 17, 12345})
	assert.Equal(t, []int{5, 17}, pointIDs(m.GetPointsInWindow(0, 0, 100, 100, 0)))

	for level := 0; level <= m.MaxLevel(); level++ {
		visible := m.GetPointsInWindow(0, 0, 100, 100, level)
		assert.LessOrEqual(t, len(visible), 2, "level %d", level)
		assert.GreaterOrEqual(t, len(visible), 1, "level %d", level)
	}

	p, _ := m.GetPoint(5)
	for parent := p.Parent(); !parent.IsNil(); parent = parent.Parent() {
		assert.False(t, parent.IsHidden())
	}

	m.ShowAll()
	assert.Len(t, m.GetPointsInWindow(0, 0, 100, 100, 0), 100)
}

func TestManagerSetDefaultLevel(t *testing.T) {
	m := newManager(t, 100, math.Inf(1))
	rd := rand.New(rand.NewSource(22))
	for i := 0; i < 64; i++ {
		require.NoError(t, m.Add(rd.Float64()*100, rd.Float64()*100, i))
	}
	require.NoError(t, m.Cluster())
	require.Equal(t, 6, m.MaxLevel())

	cases := []struct {
		numOfPoints int
		expected    int
	}{
		{numOfPoints: 10, expected: 3},
		{numOfPoints: 16, expected: 2},
		{numOfPoints: 100, expected: 0},
		{numOfPoints: 0, expected: 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, m.SetDefaultLevel(c.numOfPoints), "numOfPoints=%d", c.numOfPoints)
		assert.Equal(t, c.expected, m.Level())
	}
}

func TestManagerGetWindowDimensions(t *testing.T) {
	m := newGridManager(t)

	w, h := m.GetWindowDimensions(0, 1000)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 100.0, h)

	w, h = m.GetWindowDimensions(0, 10)
	assert.Less(t, w, 100.0)
	assert.Less(t, h, 100.0)

	w, h = m.GetWindowDimensions(m.MaxLevel()+10, 10)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 100.0, h)
}

func TestManagerNearest(t *testing.T) {
	m := newGridManager(t)

	p, ok := m.Nearest(6, 5.5, 3)
	require.True(t, ok)
	assert.Equal(t, 0, p.ID())

	m.SelectIDs([]int{0})
	m.RemoveSelection()

	_, ok = m.Nearest(6, 5.5, 3)
	assert.False(t, ok, "removed songs are skipped")

	p, ok = m.Nearest(6, 5.5, 10)
	require.True(t, ok)
	assert.Equal(t, 10, p.ID())
}
