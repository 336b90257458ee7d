package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit_RunsAllJobs(t *testing.T) {
	pool := newPool(2, 4, 8, time.Minute)

	var done sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		done.Add(1)
		pool.Submit(func() {
			defer done.Done()
			ran.Add(1)
		})
	}
	done.Wait()

	assert.Equal(t, int32(50), ran.Load())
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolSubmit_GrowsBeyondCoreWorkers(t *testing.T) {
	pool := newPool(1, 2, 1, time.Minute)

	gate := make(chan struct{})
	started := make(chan string, 4)
	blocker := func(name string) func() {
		return func() {
			started <- name
			<-gate
		}
	}

	// occupy the single core worker
	pool.Submit(blocker("first"))
	require.Equal(t, "first", <-started)

	// fills the one-slot queue
	pool.Submit(blocker("queued"))

	// queue full, below max: a surplus worker is spawned for this job
	pool.Submit(blocker("grown"))
	require.Equal(t, "grown", <-started)

	close(gate)
	require.Equal(t, "queued", <-started)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolSubmit_DegradesToCallerWhenSaturated(t *testing.T) {
	pool := newPool(1, 1, 1, time.Minute)

	gate := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-gate
	})
	<-started

	// worker blocked, this one fills the queue
	var queuedRan atomic.Bool
	pool.Submit(func() { queuedRan.Store(true) })

	// queue full, pool at max: must run on this goroutine before returning
	var callerRan bool
	pool.Submit(func() { callerRan = true })
	assert.True(t, callerRan)

	close(gate)
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.True(t, queuedRan.Load())
}

func TestPoolWorkers_SurplusRetiresAfterIdle(t *testing.T) {
	pool := newPool(1, 2, 1, 50*time.Millisecond)

	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	blocker := func() {
		started <- struct{}{}
		<-gate
	}

	pool.Submit(blocker)
	<-started
	pool.Submit(func() {}) // queued
	pool.Submit(blocker)   // grows to max
	<-started
	close(gate)

	assert.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.workers == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolShutdown_DrainsQueuedJobs(t *testing.T) {
	pool := newPool(2, 2, 16, time.Minute)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	assert.Equal(t, int32(10), ran.Load())
}

func TestPoolSubmit_AfterShutdownRunsInline(t *testing.T) {
	pool := newPool(1, 1, 1, time.Minute)
	require.NoError(t, pool.Shutdown(context.Background()))

	var ran bool
	pool.Submit(func() { ran = true })
	assert.True(t, ran)
}

func TestPoolInvoke_ContainsPanics(t *testing.T) {
	pool := newPool(1, 1, 4, time.Minute)

	var done sync.WaitGroup
	done.Add(2)
	pool.Submit(func() {
		defer done.Done()
		panic("poisoned job")
	})

	// the worker must survive and keep serving
	var ran bool
	pool.Submit(func() {
		defer done.Done()
		ran = true
	})
	done.Wait()

	assert.True(t, ran)
	require.NoError(t, pool.Shutdown(context.Background()))
}
