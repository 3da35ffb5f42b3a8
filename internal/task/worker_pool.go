package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Job is a unit of work run by the WorkerPool.
type Job func(ctx context.Context)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize bounds the number of jobs waiting for a worker
	// If zero or negative, defaults to 1
	QueueSize int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// WorkerPool runs jobs on a fixed set of worker goroutines.
// Jobs wait in a bounded backlog; Stop drains the backlog before returning.
type WorkerPool struct {
	jobs        chan Job
	workerCount int

	// mu guards stopped and sends on jobs, so no send races the close.
	mu      sync.Mutex
	stopped bool
	started bool

	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1
		logger.Warn("invalid queue size specified, using default",
			"specified_size", config.QueueSize,
			"default_size", 1)
	}

	return &WorkerPool{
		jobs:        make(chan Job, queueSize),
		workerCount: workerCount,
		logger:      logger,
	}
}

// Start launches the worker goroutines. Calling Start more than once has no
// effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		"worker_count", p.workerCount,
		"queue_size", cap(p.jobs))
}

// Available reports how many more jobs the backlog can take right now.
func (p *WorkerPool) Available() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, ErrPoolStopped
	}
	return cap(p.jobs) - len(p.jobs), nil
}

// Submit adds job to the backlog without blocking.
// Returns ErrQueueFull when the backlog is at capacity and ErrPoolStopped
// after Stop.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(p.jobs))
	}
}

// Stop rejects new jobs, lets the workers finish everything already in the
// backlog and waits for them to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		// Nobody will drain the backlog; run it inline.
		for job := range p.jobs {
			p.run(job, -1)
		}
		return
	}

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	for job := range p.jobs {
		p.run(job, id)
	}
	p.logger.Debug("job channel closed, stopping worker", "worker_id", id)
}

// run executes one job. A panicking job does not take its worker down.
func (p *WorkerPool) run(job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"worker_id", workerID,
				"panic", fmt.Sprint(r))
		}
	}()
	job(context.Background())
}
