package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockMonotonic(t *testing.T) {
	c := New()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClockResumes(t *testing.T) {
	c := NewAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClockConcurrentUnique(t *testing.T) {
	c := New()
	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				v := c.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}

func TestTimestampConversion(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	assert.Equal(t, now, ToTime(FromTime(now)))
	assert.Greater(t, int64(SystemTime{}.Now()), int64(0))
}
