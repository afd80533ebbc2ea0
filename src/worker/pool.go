package worker

import (
	"log"
	"runtime"
	"sync"
)

// Task is a unit of work run on a pool goroutine.
type Task func()

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	mu     sync.RWMutex
	jobs   chan Task
	closed bool
	wg     sync.WaitGroup
}

// New creates a worker pool. Size defaults to 4*NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = 4 * runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan Task, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.jobs {
				run(task)
			}
		}()
	}
}

func run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker: task panicked: %v", r)
		}
	}()
	task()
}

// Submit enqueues a task if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- task:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
