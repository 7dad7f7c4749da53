package sched

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

func TestQueuePushPopFIFO(t *testing.T) {
	q := NewQueue(4)
	require.Equal(t, 4, q.Cap())
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	require.True(t, q.TryPush(3))
	require.True(t, q.TryPush(4))
	require.False(t, q.TryPush(5)) // full

	v, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestQueueDrainEmpty(t *testing.T) {
	q := NewQueue(4)
	require.True(t, q.TryPush("a"))
	require.True(t, q.TryPush("b"))
	out := q.Drain()
	require.Equal(t, []interface{}{"a", "b"}, out)
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestTopologyFallbackCoversAllExecutors(t *testing.T) {
	ids := topology(4)
	require.Len(t, ids, 4)
}

func TestChunkAlignedRoundsToPage(t *testing.T) {
	c := ChunkAligned(1000, 4, 8)
	require.True(t, c*8%4096 == 0)
	require.GreaterOrEqual(t, c*4, 1000)
}

func TestPoolRunGathersResultsInOrder(t *testing.T) {
	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	p, err := Create(4, h, zap.NewNop())
	require.NoError(t, err)

	p.Prepare()
	var counter int32
	for i := 0; i < 20; i++ {
		p.AddTask(func(ctx *ExecCtx, argv [MaxTaskArgs]interface{}) (*value.Value, error) {
			n := argv[0].(int)
			atomic.AddInt32(&counter, 1)
			return value.NewI64Atom(int64(n)), nil
		}, i)
	}
	result, err := p.Run()
	require.NoError(t, err)
	require.Equal(t, int32(20), counter)
	require.EqualValues(t, 20, result.Len)
	elems := result.ListElems()
	for i := 0; i < 20; i++ {
		require.Equal(t, int64(i), value.AtomI64(elems[i]))
	}
}

func TestSplitByRespectsInsideTaskAndThreshold(t *testing.T) {
	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	p, err := Create(8, h, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, 1, p.SplitBy(1_000_000, 10, true))
	require.Equal(t, 1, p.SplitBy(10, 10, false))
	require.Greater(t, p.SplitBy(1_000_000, 10, false), 1)
}
