package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrderAndCapacity(t *testing.T) {
	q := NewBounded[int](2)
	require.True(t, q.TryPushTail(1))
	require.True(t, q.TryPushTail(2))
	require.False(t, q.TryPushTail(3), "push beyond capacity must report full, never drop")

	v, ok := q.TryPopHead()
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.True(t, q.TryPushTail(3))
	v, ok = q.TryPopHead()
	require.True(t, ok)
	require.Equal(t, 2, v)
	v, ok = q.TryPopHead()
	require.True(t, ok)
	require.Equal(t, 3, v)

	_, ok = q.TryPopHead()
	require.False(t, ok)
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := NewBounded[int](4)
	q.TryPushTail(10)
	q.TryPushTail(20)

	v, ok := q.Peek(0)
	require.True(t, ok)
	require.Equal(t, 10, v)
	require.Equal(t, 2, q.Size())

	_, ok = q.Peek(5)
	require.False(t, ok)
}

func TestClearBumpsSerialAndReleasesAll(t *testing.T) {
	q := NewBounded[int](4)
	q.TryPushTail(1)
	q.TryPushTail(2)

	startSerial := q.Serial()
	var released []int
	q.Clear(func(v int) { released = append(released, v) })

	require.Equal(t, startSerial+1, q.Serial())
	require.Equal(t, []int{1, 2}, released)
	require.Equal(t, 0, q.Size())
}

// TestSerialMonotonic exercises property 2 from spec §8: the serial is
// non-decreasing, and strictly increases on every Clear.
func TestSerialMonotonic(t *testing.T) {
	q := NewBounded[int](4)
	last := q.Serial()
	for i := 0; i < 10; i++ {
		q.TryPushTail(i)
		q.Clear(nil)
		require.Greater(t, q.Serial(), last)
		last = q.Serial()
	}
}

func TestPushTailBlocksUntilSpace(t *testing.T) {
	q := NewBounded[int](1)
	require.True(t, q.TryPushTail(1))

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- q.PushTail(ctx, 2, 5*time.Millisecond)
	}()

	select {
	case <-done:
		t.Fatal("PushTail returned before space was available")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = q.TryPopHead()
	require.NoError(t, <-done)
	require.Equal(t, 1, q.Size())
}

func TestPopHeadRespectsEOF(t *testing.T) {
	q := NewBounded[int](1)
	var eof atomic.Bool

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	var gotOK bool
	go func() {
		defer wg.Done()
		_, ok, err := q.PopHead(ctx, 2*time.Millisecond, eof.Load)
		require.NoError(t, err)
		gotOK = ok
	}()

	time.Sleep(10 * time.Millisecond)
	eof.Store(true)
	wg.Wait()
	require.False(t, gotOK, "PopHead must give up once eof() reports true")
}

func TestPushTailCanceledByContext(t *testing.T) {
	q := NewBounded[int](1)
	q.TryPushTail(1) // fill it

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := q.PushTail(ctx, 2, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}
