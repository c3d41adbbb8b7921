package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Pool bounds the number of store operations running at once. Callers block
// in Do until a slot frees up, so per-connection command ordering is kept
// while process-wide concurrency stays capped.
type Pool struct {
	tasks     chan func()
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPool starts size workers. Size must be greater than 0.
func NewPool(size int) *Pool {
	if size <= 0 {
		panic("pool size must be greater than 0")
	}

	p := &Pool{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			return
		}
	}
}

// Do runs fn on a pool worker and waits for it to finish. It returns early
// with the context error if ctx is cancelled before a worker picks fn up.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() { result <- fn() }

	select {
	case p.tasks <- task:
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers. Tasks already picked up run to completion.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
