package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuickSort(t *testing.T) {
	input := []int{4, 3, 2, 1, 10, 5555, -1, 20, 100, -100}
	arr := QuickSortG(input, CompareInt)

	assert.Equal(t, []int{-100, -1, 1, 2, 3, 4, 10, 20, 100, 5555}, arr)
	assert.Equal(t, 4, input[0], "input is left untouched")
	assert.Empty(t, QuickSortG([]int{}, CompareInt))
}

func TestClamp(t *testing.T) {
	cases := []struct {
		val, low, high, expected int
	}{
		{val: -5, low: 0, high: 3, expected: 0},
		{val: 8, low: 0, high: 3, expected: 3},
		{val: 2, low: 0, high: 3, expected: 2},
		{val: 0, low: 0, high: 0, expected: 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, Clamp(c.val, c.low, c.high))
	}
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 3.14, RoundFloat(3.14159, 2))
	assert.Equal(t, 2.0, RoundFloat(1.999, 1))
}
