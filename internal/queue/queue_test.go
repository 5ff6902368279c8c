package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsTaskResult(t *testing.T) {
	q := New(2)

	var got string
	err := q.Submit(func() error {
		got = "ran"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ran", got)

	boom := errors.New("boom")
	err = q.Submit(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Stats{Limit: 2}, q.Stats(), "slot must be released after a failure")
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	const limit = 3
	const tasks = 12
	q := New(limit)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Submit(func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, int64(limit), peak.Load(), "queue should reach full width")
	assert.Equal(t, Stats{Limit: limit}, q.Stats())
}

func TestNextTaskWaitsForFreeSlot(t *testing.T) {
	q := New(1)

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	secondStarted := make(chan struct{})

	go func() {
		_ = q.Submit(func() error {
			close(firstStarted)
			<-release
			return nil
		})
	}()
	<-firstStarted

	go func() {
		_ = q.Submit(func() error {
			close(secondStarted)
			return nil
		})
	}()

	select {
	case <-secondStarted:
		t.Fatal("second task started while the only slot was busy")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Eventually(t, func() bool { return q.Stats().Pending == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	select {
	case <-secondStarted:
	case <-time.After(time.Second):
		t.Fatal("second task did not start after the slot was freed")
	}
}

func TestAdmissionIsFIFO(t *testing.T) {
	q := New(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Submit(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Submit(func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// Make arrival order deterministic
		require.Eventually(t, func() bool { return q.Stats().Pending == i+1 }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestOnChangeReportsCounts(t *testing.T) {
	q := New(2)

	var mu sync.Mutex
	var seen []Stats
	q.OnChange(func(s Stats) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, q.Submit(func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, Stats{Limit: 2, Pending: 1}, seen[0])
	assert.Equal(t, Stats{Limit: 2, Active: 1}, seen[1])
	assert.Equal(t, Stats{Limit: 2}, seen[2])
}

func TestNewClampsLimit(t *testing.T) {
	assert.Equal(t, 1, New(0).Stats().Limit)
}
