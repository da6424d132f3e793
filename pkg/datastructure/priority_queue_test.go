package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func generateRandomInteger(rd *rand.Rand, min int, max int) int {
	return min + rd.Intn(max-min)
}

func TestPriorityQueue(t *testing.T) {
	rd := rand.New(rand.NewSource(42))
	pq := NewMinHeap[int]()
	assert.NotNil(t, pq)

	for i := 0; i < 10000; i++ {
		pq.Insert(NewPriorityQueueNode(float64(generateRandomInteger(rd, 0, 1000)), i, i))
	}
	assert.Equal(t, 10000, pq.Size())

	prevItem, ok := pq.ExtractMin()
	assert.True(t, ok)

	for i := 1; i < 10000; i++ {
		item, ok := pq.ExtractMin()
		assert.True(t, ok)

		if prevItem.Rank == item.Rank {
			assert.Less(t, prevItem.Seq, item.Seq, "equal ranks must come out in sequence order")
		} else {
			assert.Less(t, prevItem.Rank, item.Rank)
		}
		prevItem = item
	}

	_, ok = pq.ExtractMin()
	assert.False(t, ok)
}

func TestPriorityQueueGetMin(t *testing.T) {
	pq := NewMinHeapWithCap[string](4)

	_, ok := pq.GetMin()
	assert.False(t, ok)

	pq.Insert(NewPriorityQueueNode(3.0, 0, "c"))
	pq.Insert(NewPriorityQueueNode(1.0, 2, "b"))
	pq.Insert(NewPriorityQueueNode(1.0, 1, "a"))

	top, ok := pq.GetMin()
	assert.True(t, ok)
	assert.Equal(t, "a", top.Item)
	assert.Equal(t, 3, pq.Size())

	order := make([]string, 0, 3)
	for pq.Size() > 0 {
		item, _ := pq.ExtractMin()
		order = append(order, item.Item)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
