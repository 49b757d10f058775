package scanner

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// workerPool runs submitted tasks on a fixed set of goroutines.
type workerPool struct {
	workers    int
	taskQueue  chan func()
	wg         sync.WaitGroup
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers    int
	TasksTotal uint64
	TasksDone  uint64
}

// newWorkerPool creates a pool. If workers is 0, it defaults to
// runtime.NumCPU().
func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &workerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers),
	}
}

func (p *workerPool) start() {
	if p.running.Swap(true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		task()
		p.tasksDone.Add(1)
	}
}

// submit queues a task, blocking while every worker is busy. It returns
// false when ctx ends first.
func (p *workerPool) submit(ctx context.Context, task func()) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case p.taskQueue <- task:
		p.tasksTotal.Add(1)
		return true
	}
}

// stop lets queued tasks finish and waits for the workers.
func (p *workerPool) stop() {
	if !p.running.Swap(false) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
}

func (p *workerPool) stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
	}
}
