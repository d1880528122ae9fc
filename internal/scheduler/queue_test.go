package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	q.PushBack(1)
	q.PushBack(2)
	q.PushBack(3)

	id, ok := q.PopFront()
	assert.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, 2, q.Len())

	front, ok := q.Front()
	assert.True(t, ok)
	assert.Equal(t, 2, front)
}

func TestQueueRemoveArbitraryElement(t *testing.T) {
	q := NewQueue()
	q.PushBack(1)
	q.PushBack(2)
	q.PushBack(3)

	assert.True(t, q.Remove(2))
	assert.False(t, q.Remove(2))

	var order []int
	q.Each(func(id int) bool {
		order = append(order, id)
		return true
	})
	assert.Equal(t, []int{1, 3}, order)
}

func TestQueuePopFrontEmpty(t *testing.T) {
	q := NewQueue()
	_, ok := q.PopFront()
	assert.False(t, ok)
}
