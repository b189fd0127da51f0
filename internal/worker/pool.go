// Package worker runs blocking per-device work off the ingest path.
//
// Work is sharded by key: every item with the same key lands on the same
// worker queue, so one device's readings are processed in arrival order while
// different devices proceed in parallel. Submit never blocks; a full shard
// rejects the item with ErrQueueFull.
package worker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	keyOf     func(T) string

	queues []chan T
	wg     sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted int64
	processed int64
	failed    int64
	dropped   int64
}

type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// NewPool builds a pool of workers, each with its own queue of queueSize
// items. keyOf selects the shard for an item.
func NewPool[T any](workers, queueSize int, keyOf func(T) string, processor func(context.Context, T) error) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}
	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		keyOf:     keyOf,
		queues:    make([]chan T, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan T, queueSize)
	}
	return p
}

func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, p.queues[i])
	}
	p.started = true
	return nil
}

func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queues[p.shard(work)] <- work:
		atomic.AddInt64(&p.submitted, 1)
		return nil
	default:
		atomic.AddInt64(&p.dropped, 1)
		return ErrQueueFull
	}
}

// Stop closes the queues and waits for workers to drain them.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

func (p *Pool[T]) Stats() PoolStats {
	depth := 0
	for _, q := range p.queues {
		depth += len(q)
	}
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: depth,
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

func (p *Pool[T]) shard(work T) int {
	if p.workers == 1 || p.keyOf == nil {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.keyOf(work)))
	return int(h.Sum32() % uint32(p.workers))
}

func (p *Pool[T]) worker(ctx context.Context, queue <-chan T) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-queue:
			if !ok {
				return
			}
			err := p.processor(ctx, work)
			atomic.AddInt64(&p.processed, 1)
			if err != nil {
				atomic.AddInt64(&p.failed, 1)
			}
		}
	}
}
