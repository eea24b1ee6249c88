package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of goroutines and hands each result to
// a handler as soon as it is produced
type Pool struct {
	workers    int
	jobQueue   chan Job
	handle     func(Result)
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool bound to ctx. handle is called from worker
// goroutines and must be safe for concurrent use; nil discards results.
func NewPool(ctx context.Context, workers int, handle func(Result)) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if handle == nil {
		handle = func(Result) {}
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		handle:     handle,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.handle(job.Execute(p.ctx))
		}
	}
}

// Submit queues a job, blocking while the queue is full. It reports false
// when the pool was cancelled before the job could be queued.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait stops accepting jobs and blocks until every queued job has run.
// Submit must not be called concurrently with Wait.
func (p *Pool) Wait() {
	p.closeQueue()
	p.wg.Wait()
	p.cancelFunc()
}

// Shutdown cancels running jobs and drops queued ones
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeQueue()
}

func (p *Pool) closeQueue() {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
}
