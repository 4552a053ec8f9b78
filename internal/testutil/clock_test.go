package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())
}

func TestDeterministicClock_NextIncrementsMonotonically(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(3), clock.Next())
	assert.Equal(t, int64(3), clock.Current())
}

func TestDeterministicClock_NowAdvancesByStep(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch+DefaultStep, clock.Now())

	clock.SetStep(0)
	frozen := clock.Now()
	assert.Equal(t, frozen, clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Next()
	clock.Next()
	clock.SetStep(0)
	clock.Now()

	clock.Reset()

	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch+DefaultStep, clock.Now())
}

func TestDeterministicClock_ConcurrentNext(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines, perGoroutine = 10, 100

	var wg sync.WaitGroup
	results := make(chan int64, goroutines*perGoroutine)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				results <- clock.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		require.False(t, seen[v], "duplicate seq %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
