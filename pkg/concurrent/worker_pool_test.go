package concurrent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	const n = 1000
	workers := NewWorkerPool[int, int](8, n)
	for i := 0; i < n; i++ {
		workers.AddJob(i)
	}
	workers.Close()
	workers.Start(func(job int) int {
		return job * job
	})
	workers.Wait()

	results := make([]int, 0, n)
	for r := range workers.CollectResults() {
		results = append(results, r)
	}
	sort.Ints(results)

	assert.Len(t, results, n)
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
}

func TestWorkerPoolNoJobs(t *testing.T) {
	workers := NewWorkerPool[int, int](0, 0)
	workers.Close()
	workers.Start(func(job int) int { return job })
	workers.Wait()

	_, ok := <-workers.CollectResults()
	assert.False(t, ok)
}
