package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](1)
	result := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	require.NoError(t, q.Enqueue(context.Background(), "https://example.com/a"))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "https://example.com/a", got)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qDequeue.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	qEnqueue := NewQueue[int](1)
	require.True(t, qEnqueue.TryEnqueue(1))
	err = qEnqueue.Enqueue(ctx, 2)
	require.EqualError(t, err, "enqueue canceled: context canceled")
}

func TestQueueEnqueueBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](1)
	require.True(t, q.TryEnqueue(1))
	require.False(t, q.TryEnqueue(2))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(context.Background(), 2)
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	item, ok := q.TryDequeue()
	require.True(t, ok)
	require.Equal(t, 1, item)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after dequeue")
	}
	require.Equal(t, 1, q.Len())
}

func TestQueueCloseDrainsBufferedItems(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](2)
	require.True(t, q.TryEnqueue(1))
	require.True(t, q.TryEnqueue(2))
	q.Close()
	// Closing twice should be safe.
	q.Close()

	for want := 1; want <= 2; want++ {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := q.Dequeue(context.Background())
	require.True(t, errors.Is(err, ErrClosed))

	_, ok := q.TryDequeue()
	require.False(t, ok)
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 8, 50
	q := NewQueue[int](4)
	var got sync.Map
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, err := q.Dequeue(context.Background())
				if err != nil {
					return
				}
				got.Store(item, true)
			}
		}()
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(context.Background(), p*perProducer+i); err != nil {
					t.Errorf("Enqueue() error = %v", err)
				}
			}
		}(p)
	}
	wg.Wait()
	q.Close()
	consumers.Wait()

	count := 0
	got.Range(func(_, _ any) bool {
		count++
		return true
	})
	require.Equal(t, producers*perProducer, count)
}
