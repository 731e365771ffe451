package search

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeenSet(t *testing.T) {
	ctx := context.Background()
	seen := NewMemorySeenSet()

	added, err := seen.Add(ctx, "a=1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = seen.Add(ctx, "a=1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, seen.Len())
}

func TestMemorySeenSet_ConcurrentAddsOnce(t *testing.T) {
	ctx := context.Background()
	seen := NewMemorySeenSet()

	var mu sync.Mutex
	wins := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sig := fmt.Sprintf("v=%d", i)
				if ok, _ := seen.Add(ctx, sig); ok {
					mu.Lock()
					wins[sig]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, wins, 50)
	for sig, n := range wins {
		assert.Equal(t, 1, n, sig)
	}
}
