package refresh

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pool sizing. Fixed configuration: the pool keeps core workers alive
// permanently and grows to max under load; surplus workers retire after the
// keep-alive idle period.
const (
	corePoolSize  = 5
	maxPoolSize   = 10
	queueCapacity = 100
	keepAlive     = 60 * time.Second
)

// Pool is a bounded worker pool for asynchronous refresh jobs.
//
// Saturation never rejects work: when the queue is full and the pool is at
// maximum size, the submitted job runs on the calling goroutine instead.
// The caller blocks, the job survives.
type Pool struct {
	queue     chan func()
	keepAlive time.Duration
	max       int

	mu      sync.Mutex
	closed  bool
	workers int

	wg sync.WaitGroup
}

// NewPool creates the refresh pool with its fixed sizing and starts the core
// workers.
func NewPool() *Pool {
	return newPool(corePoolSize, maxPoolSize, queueCapacity, keepAlive)
}

func newPool(core, max, queueSize int, idle time.Duration) *Pool {
	p := &Pool{
		queue:     make(chan func(), queueSize),
		keepAlive: idle,
		max:       max,
	}

	p.mu.Lock()
	for i := 0; i < core; i++ {
		p.spawnLocked(true, nil)
	}
	p.mu.Unlock()

	return p
}

// spawnLocked starts a worker, optionally seeded with a first job. Seeding
// avoids the window where a freshly spawned worker is not yet receiving and
// the triggering job would fall through to the caller.
func (p *Pool) spawnLocked(core bool, first func()) {
	p.workers++
	p.wg.Add(1)
	go p.worker(core, first)
}

func (p *Pool) worker(core bool, first func()) {
	defer p.wg.Done()
	if first != nil {
		p.invoke(first)
	}
	for {
		if core {
			job, ok := <-p.queue
			if !ok {
				return
			}
			p.invoke(job)
			continue
		}

		select {
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.invoke(job)
		case <-time.After(p.keepAlive):
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

// invoke is the last-resort safety net: a panicking job is logged and
// contained so it cannot take the worker down. Failure accounting is the
// job's own responsibility, not this handler's.
func (p *Pool) invoke(job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("refresh job panicked")
		}
	}()

	job()
}

// Submit schedules job on the pool, growing it up to the maximum size when
// the queue is full. With the queue full and the pool at maximum, job runs
// synchronously on the calling goroutine.
func (p *Pool) Submit(job func()) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		p.invoke(job)
		return
	}

	select {
	case p.queue <- job:
		p.mu.Unlock()
		return
	default:
	}

	if p.workers < p.max {
		p.spawnLocked(false, job)
		p.mu.Unlock()
		return
	}

	p.mu.Unlock()

	// degrade to synchronous execution on the submitter's goroutine
	p.invoke(job)
}

// Shutdown stops intake and waits for queued jobs to drain, bounded by the
// context deadline. Jobs still queued when the deadline passes keep running
// on their workers; the process is expected to exit shortly after.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn().Msg("refresh pool drain timed out; abandoning in-flight jobs")
		return ctx.Err()
	}
}
