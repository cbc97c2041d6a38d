package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFOAcrossWrap(t *testing.T) {
	rq := NewRingQueue[int](3)
	assert.True(t, rq.IsEmpty())

	for i := 1; i <= 3; i++ {
		require.NoError(t, rq.Enqueue(i))
	}
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, rq.Enqueue(4))

	front, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, front)
	assert.Equal(t, 3, rq.Len())

	var got []int
	for !rq.IsEmpty() {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestRingQueueEmpty(t *testing.T) {
	rq := NewRingQueue[*struct{}](1)
	v, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.Nil(t, v)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
