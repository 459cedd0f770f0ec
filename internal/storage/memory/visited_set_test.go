package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVisitedSetClaimOnce(t *testing.T) {
	t.Parallel()

	set := NewVisitedSet()
	require.True(t, set.TryClaim("https://example.com/b"))
	require.False(t, set.TryClaim("https://example.com/b"))
	require.True(t, set.TryClaim("https://example.com/a"))
	require.Equal(t, 2, set.Len())
	require.True(t, set.Contains("https://example.com/a"))
	require.False(t, set.Contains("https://example.com/c"))
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, set.Snapshot())

	set.Reset()
	require.Zero(t, set.Len())
	require.True(t, set.TryClaim("https://example.com/b"))
}

func TestVisitedSetConcurrentClaims(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 32
		urls       = 50
	)
	set := NewVisitedSet()
	var wins atomic.Int64
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range urls {
				if set.TryClaim(fmt.Sprintf("https://example.com/%d", i)) {
					wins.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(urls), wins.Load())
	require.Equal(t, urls, set.Len())
}

func TestVisitedSetSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	set := NewVisitedSet()
	set.TryClaim("https://example.com")
	snap := set.Snapshot()
	snap[0] = "modified"
	if got := set.Snapshot()[0]; got != "https://example.com" {
		t.Fatalf("expected Snapshot to return a copy, got %q", got)
	}
}
