package clustering_test

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/clustering"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type songInput struct {
	x, y float64
	id   int
}

func newSongTree(size float64, inputs []songInput) *datastructure.QuadTree[datastructure.SongPoint] {
	forest := datastructure.NewSongForest()
	qt := datastructure.NewQuadTreeFromDimensions[datastructure.SongPoint](0, 0, size, size, logr.Discard())
	for _, in := range inputs {
		qt.Add(forest.NewPoint(in.x, in.y, in.id))
	}
	return qt
}

func randomSongTree(seed uint64, n int, size float64) *datastructure.QuadTree[datastructure.SongPoint] {
	rd := rand.New(rand.NewSource(seed))
	inputs := make([]songInput, n)
	for i := range inputs {
		inputs[i] = songInput{x: rd.Float64() * size, y: rd.Float64() * size, id: i}
	}
	return newSongTree(size, inputs)
}

// groups returns the sorted leaf ids of every point of tree, sorted by their first id.
func groups(tree *datastructure.QuadTree[datastructure.SongPoint]) [][]int {
	result := make([][]int, 0, tree.Count())
	for _, p := range tree.All() {
		ids := p.GetAllIDs()
		sort.Ints(ids)
		result = append(result, ids)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][0] < result[j][0]
	})
	return result
}

var strategies = []clustering.Strategy{clustering.Greedy, clustering.Advanced}

func TestClusterRoundTrip(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			tree := newSongTree(200, []songInput{{0, 0, 1}, {1, 1, 2}, {100, 100, 3}})

			next := clustering.Pass(tree, strategy, 5)
			require.Equal(t, 2, next.Count())
			assert.Equal(t, [][]int{{1, 2}, {3}}, groups(next))
			assert.Equal(t, tree.Rectangle(), next.Rectangle())

			for _, p := range next.All() {
				if p.LeafCount() == 1 {
					assert.True(t, p.RightChild().IsNil(), "unmatched point is merged alone")
					assert.Equal(t, datastructure.NewPoint(100, 100), p.Position())
				}
			}
			assert.Equal(t, 3, tree.Count(), "the source level is left untouched")
		})
	}
}

func TestClusterDegenerateTrees(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			empty := newSongTree(10, nil)
			assert.Equal(t, 0, clustering.Pass(empty, strategy, 5).Count())

			single := newSongTree(10, []songInput{{5, 5, 7}})
			next := clustering.Pass(single, strategy, 5)
			require.Equal(t, 1, next.Count())

			lone := next.All()[0]
			assert.Equal(t, []int{7}, lone.GetAllIDs())
			assert.False(t, lone.IsLeaf())
			assert.Equal(t, datastructure.NewPoint(5, 5), lone.Position())
		})
	}
}

func TestClusterStrategiesDiffer(t *testing.T) {
	inputs := []songInput{{0, 0, 1}, {10, 0, 2}, {13, 0, 3}}

	greedy := clustering.ClusteredTree(newSongTree(100, inputs), 100)
	assert.Equal(t, [][]int{{1, 2}, {3}}, groups(greedy), "greedy pairs in insertion order")

	advanced := clustering.AdvancedClusteredTree(newSongTree(100, inputs), 100)
	assert.Equal(t, [][]int{{1}, {2, 3}}, groups(advanced), "advanced pairs the closest points first")

	reversed := []songInput{inputs[2], inputs[1], inputs[0]}
	greedy = clustering.ClusteredTree(newSongTree(100, reversed), 100)
	assert.Equal(t, [][]int{{1}, {2, 3}}, groups(greedy))
}

func TestClusterAdvancedRecomputesNeighbours(t *testing.T) {
	// b-c is the closest pair. a points at b and d points at c, both must find new neighbours.
	inputs := []songInput{{0, 0, 1}, {4, 0, 2}, {5, 0, 3}, {9.5, 0, 4}, {30, 0, 5}}
	next := clustering.AdvancedClusteredTree(newSongTree(100, inputs), 20)
	assert.Equal(t, [][]int{{1, 4}, {2, 3}, {5}}, groups(next))
}

func checkPartition(t *testing.T, lower, upper *datastructure.QuadTree[datastructure.SongPoint]) int {
	t.Helper()
	seen := make(map[datastructure.SongPoint]int, lower.Count())
	lone := 0
	for _, p := range upper.All() {
		left := p.LeftChild()
		require.False(t, left.IsNil())
		seen[left]++
		if right := p.RightChild(); right.IsNil() {
			lone++
		} else {
			seen[right]++
		}
	}

	assert.Len(t, seen, lower.Count())
	for child, n := range seen {
		assert.True(t, lower.Contains(child))
		assert.Equal(t, 1, n, "%v is a child of more than one point", child)
	}
	return lone
}

func TestClusterPartitionInvariant(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			base := randomSongTree(11, 1500, 1000)
			opts := clustering.Options{SearchRadius: 40, MinPoints: 2, Strategy: strategy}

			levels, err := clustering.BuildLevels(base, opts, logr.Discard())
			require.NoError(t, err)
			require.Greater(t, len(levels), 1)

			for k := 0; k+1 < len(levels); k++ {
				checkPartition(t, levels[k], levels[k+1])
				assert.Less(t, levels[k+1].Count(), levels[k].Count())

				for _, p := range levels[k+1].All() {
					assert.True(t, levels[k+1].Rectangle().Contains(p.Position()))
				}
			}
		})
	}
}

func TestClusterUnboundedRadiusLeavesOneLonePoint(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			base := randomSongTree(12, 1000, 1000)
			opts := clustering.Options{SearchRadius: math.Inf(1), MinPoints: 2, Strategy: strategy}

			levels, err := clustering.BuildLevels(base, opts, logr.Discard())
			require.NoError(t, err)

			expected := []int{1000, 500, 250, 125, 63, 32, 16, 8, 4, 2, 1}
			require.Len(t, levels, len(expected))
			for k, level := range levels {
				assert.Equal(t, expected[k], level.Count(), "level %d", k)
				if k > 0 {
					assert.LessOrEqual(t, checkPartition(t, levels[k-1], level), 1)
				}
			}

			top := levels[len(levels)-1].All()[0]
			assert.Equal(t, 1000, top.LeafCount())
		})
	}
}

func TestBuildLevels(t *testing.T) {
	t.Run("round trip stops when nothing merges", func(t *testing.T) {
		base := newSongTree(200, []songInput{{0, 0, 1}, {1, 1, 2}, {100, 100, 3}})
		opts := clustering.DefaultOptions()
		opts.SearchRadius = 5

		levels, err := clustering.BuildLevels(base, opts, logr.Discard())
		require.NoError(t, err)
		require.Len(t, levels, 2)
		assert.Equal(t, 3, levels[0].Count())
		assert.Equal(t, 2, levels[1].Count())
		for _, p := range levels[1].All() {
			assert.True(t, p.Parent().IsNil(), "top level point %v has a parent", p.GetAllIDs())
		}
	})

	t.Run("too few points", func(t *testing.T) {
		base := newSongTree(200, []songInput{{0, 0, 1}})
		levels, err := clustering.BuildLevels(base, clustering.DefaultOptions(), logr.Discard())
		require.NoError(t, err)
		assert.Len(t, levels, 1)
	})

	t.Run("max levels", func(t *testing.T) {
		base := randomSongTree(13, 500, 1000)
		opts := clustering.Options{SearchRadius: math.Inf(1), MinPoints: 2, MaxLevels: 3, Strategy: clustering.Advanced}

		levels, err := clustering.BuildLevels(base, opts, logr.Discard())
		require.NoError(t, err)
		assert.Len(t, levels, 4)
	})

	t.Run("invalid options", func(t *testing.T) {
		base := newSongTree(200, nil)
		cases := []struct {
			opts     clustering.Options
			expected error
		}{
			{opts: clustering.Options{SearchRadius: 0, MinPoints: 2}, expected: clustering.ErrInvalidSearchRadius},
			{opts: clustering.Options{SearchRadius: math.NaN(), MinPoints: 2}, expected: clustering.ErrInvalidSearchRadius},
			{opts: clustering.Options{SearchRadius: 1, MinPoints: 0}, expected: clustering.ErrInvalidMinPoints},
			{opts: clustering.Options{SearchRadius: 1, MinPoints: 2, MaxLevels: -1}, expected: clustering.ErrInvalidMaxLevels},
		}
		for _, c := range cases {
			_, err := clustering.BuildLevels(base, c.opts, logr.Discard())
			assert.True(t, errors.Is(err, c.expected), "got %v", err)
		}
	})
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in       string
		expected clustering.Strategy
		err      bool
	}{
		{in: "greedy", expected: clustering.Greedy},
		{in: "Simple", expected: clustering.Greedy},
		{in: " advanced ", expected: clustering.Advanced},
		{in: "kmeans", err: true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := clustering.ParseStrategy(c.in)
			if c.err {
				assert.ErrorIs(t, err, clustering.ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expected, got)
		})
	}

	var s clustering.Strategy
	require.NoError(t, s.UnmarshalText([]byte("advanced")))
	assert.Equal(t, clustering.Advanced, s)
	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "advanced", string(text))
}

func TestClusterAdvancedLargeTreeIsDeterministic(t *testing.T) {
	// above the size where the first neighbour search is spread over a worker pool
	first := randomSongTree(14, 6000, 1000)
	second := randomSongTree(14, 6000, 1000)

	a := clustering.AdvancedClusteredTree(first, 30)
	b := clustering.AdvancedClusteredTree(second, 30)

	checkPartition(t, first, a)
	assert.Equal(t, groups(a), groups(b))
	assert.Less(t, a.Count(), first.Count())
}
