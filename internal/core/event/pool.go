package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Task func()

// Pool runs tasks on a fixed number of workers fed by a bounded queue. Submit never blocks:
// when the queue is full the task gets its own overflow goroutine, which Shutdown also waits
// for.
type Pool struct {
	workers int
	tasks   chan Task
	logger  *zap.Logger

	mu       sync.RWMutex
	closed   bool
	started  bool
	group    errgroup.Group
	overflow sync.WaitGroup

	submitted  atomic.Uint64
	overflowed atomic.Uint64
	completed  atomic.Uint64
}

func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		logger:  logger,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		id := i
		p.group.Go(func() error {
			p.workerLoop(id)
			return nil
		})
	}
	p.logger.Info("started worker pool", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.tasks)))
}

func (p *Pool) workerLoop(id int) {
	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(worker int, task Task) {
	defer p.completed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.Int("worker", worker), zap.Any("panic", r))
		}
	}()
	task()
}

func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.tasks <- task:
	default:
		p.overflowed.Add(1)
		p.overflow.Add(1)
		go func() {
			defer p.overflow.Done()
			p.run(-1, task)
		}()
	}
	return nil
}

// Shutdown stops intake and waits until every accepted task has finished or ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if started {
			_ = p.group.Wait()
		} else {
			for task := range p.tasks {
				p.run(0, task)
			}
		}
		p.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained", zap.Uint64("completed", p.completed.Load()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain worker pool: %w", ctx.Err())
	}
}

// Stats returns submitted, overflowed and completed task counters.
func (p *Pool) Stats() (submitted, overflowed, completed uint64) {
	return p.submitted.Load(), p.overflowed.Load(), p.completed.Load()
}
