package clustering

import (
	"math"
	"runtime"

	"github.com/lintang-b-s/songmap/pkg/concurrent"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
)

// below this many items the first neighbour search runs on the calling goroutine
const parallelThreshold = 4096

// ClusteredTree builds the next coarser level of tree. items are visited in insertion order,
// every unconsumed item is merged with its nearest unconsumed neighbour closer than
// maxSearchRadius, or merged alone if there is none.
func ClusteredTree[T datastructure.Storable[T]](tree *datastructure.QuadTree[T], maxSearchRadius float64) *datastructure.QuadTree[T] {
	clustered := datastructure.NewQuadTree[T](tree.Rectangle(), tree.Logger())
	work := tree.Clone()

	for _, item := range tree.All() {
		if work.Count() == 0 {
			break
		}
		if !work.Contains(item) {
			continue
		}

		work.Remove(item)
		other, ok := work.GetNearest(item, maxSearchRadius)
		if !ok {
			clustered.Add(item.Merge(nil))
			continue
		}

		work.Remove(other)
		clustered.Add(item.Merge(&other))
	}

	tree.Logger().V(2).Info("clustered tree", "strategy", Greedy.String(), "in", tree.Count(), "out", clustered.Count())
	return clustered
}

type candidate struct {
	item    int
	nearest int
	version int
}

type neighbour struct {
	item    int
	nearest int
	dist    float64
}

type candidateState[T any] struct {
	value   T
	nearest int
	version int
}

/*
AdvancedClusteredTree builds the next coarser level of tree by always merging the globally
closest pair first.

every item keeps a candidate (item, nearest neighbour, distance) in a min heap ordered by
distance and then insertion order. items are only ever removed from the working tree, so a
candidate stays correct until its neighbour gets merged. pointsAt keeps for every item the
items whose candidate points at it, after a merge only those candidates are recomputed. the
recomputed candidate is pushed with a new version and the old heap entry is skipped when popped.
*/
func AdvancedClusteredTree[T datastructure.Storable[T]](tree *datastructure.QuadTree[T], maxSearchRadius float64) *datastructure.QuadTree[T] {
	clustered := datastructure.NewQuadTree[T](tree.Rectangle(), tree.Logger())
	work := tree.Clone()

	items := work.All()
	if len(items) == 0 {
		return clustered
	}

	states := make([]candidateState[T], len(items))
	index := make(map[T]int, len(items))
	for i, item := range items {
		states[i] = candidateState[T]{value: item, nearest: -1}
		index[item] = i
	}

	pointsAt := make(map[int][]int, len(items))
	pq := datastructure.NewMinHeapWithCap[candidate](len(items))

	findNearest := func(i int) neighbour {
		nearest, ok := work.GetNearest(states[i].value, maxSearchRadius)
		if !ok {
			return neighbour{item: i, nearest: -1, dist: math.Inf(1)}
		}
		return neighbour{item: i, nearest: index[nearest], dist: nearest.Position().DistanceTo(states[i].value.Position())}
	}

	record := func(nb neighbour) {
		st := &states[nb.item]
		st.version++
		st.nearest = nb.nearest
		if nb.nearest != -1 {
			pointsAt[nb.nearest] = append(pointsAt[nb.nearest], nb.item)
		}
		pq.Insert(datastructure.NewPriorityQueueNode(nb.dist, nb.item, candidate{item: nb.item, nearest: nb.nearest, version: st.version}))
	}

	for _, nb := range initialNeighbours(len(states), findNearest) {
		record(nb)
	}

	merges := 0
	for work.Count() > 0 {
		top, ok := pq.ExtractMin()
		if !ok {
			break
		}

		c := top.Item
		st := &states[c.item]
		if c.version != st.version || !work.Contains(st.value) {
			continue
		}

		work.Remove(st.value)
		if c.nearest == -1 {
			clustered.Add(st.value.Merge(nil))
			continue
		}

		other := states[c.nearest].value
		work.Remove(other)
		clustered.Add(st.value.Merge(&other))
		merges++

		for _, merged := range [2]int{c.item, c.nearest} {
			for _, i := range pointsAt[merged] {
				if states[i].nearest != merged || !work.Contains(states[i].value) {
					continue
				}
				record(findNearest(i))
			}
			delete(pointsAt, merged)
		}
	}

	tree.Logger().V(2).Info("clustered tree", "strategy", Advanced.String(), "in", tree.Count(), "out", clustered.Count(),
		"pairs", merges)
	return clustered
}

// initialNeighbours runs find for every item. the working tree is only read until every
// neighbour is known, so large trees are searched by a worker pool. results are ordered by item.
func initialNeighbours(n int, find func(i int) neighbour) []neighbour {
	result := make([]neighbour, n)
	if n < parallelThreshold {
		for i := range result {
			result[i] = find(i)
		}
		return result
	}

	workers := concurrent.NewWorkerPool[int, neighbour](runtime.NumCPU(), n)
	for i := 0; i < n; i++ {
		workers.AddJob(i)
	}
	workers.Close()
	workers.Start(find)
	workers.Wait()

	for nb := range workers.CollectResults() {
		result[nb.item] = nb
	}
	return result
}

// Pass runs one clustering pass with the given strategy.
func Pass[T datastructure.Storable[T]](tree *datastructure.QuadTree[T], strategy Strategy, maxSearchRadius float64) *datastructure.QuadTree[T] {
	switch strategy {
	case Advanced:
		return AdvancedClusteredTree(tree, maxSearchRadius)
	default:
		return ClusteredTree(tree, maxSearchRadius)
	}
}
