package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pix-server/internal/utils"
)

var (
	ErrQueueFull       = errors.New("worker queue is full")
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
)

// Job is one unit of work. Run must return once ctx is cancelled.
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// WorkerPool runs jobs on a fixed number of goroutines with a bounded
// queue in front of them.
type WorkerPool struct {
	workers  int
	jobQueue chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	active    atomic.Int64
}

type PoolStats struct {
	Workers       int   `json:"workers"`
	ActiveJobs    int64 `json:"active_jobs"`
	QueuedJobs    int   `json:"queued_jobs"`
	SubmittedJobs int64 `json:"submitted_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	RejectedJobs  int64 `json:"rejected_jobs"`
}

func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	utils.LogSuccess("WorkerPool", "Pool created: %d workers, queue %d", workers, queueSize)
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	utils.LogInfo("WorkerPool", "%d workers started", p.workers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.execute(id, job)
	}
	utils.LogDebug("WorkerPool", "Worker #%d stopped", id)
}

func (p *WorkerPool) execute(workerID int, job Job) {
	p.active.Add(1)
	start := time.Now()
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			utils.LogError("WorkerPool", fmt.Sprintf("Worker #%d: job %s panicked: %v", workerID, job.ID, r), nil)
			return
		}
		utils.LogDebug("WorkerPool", "Worker #%d: job %s finished in %v", workerID, job.ID, time.Since(start))
	}()

	job.Run(p.ctx)
}

// Submit enqueues a job without blocking.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobQueue <- job:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		utils.LogWarning("WorkerPool", "Queue full, job %s rejected", job.ID)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for the running ones. Jobs still
// running when timeout elapses have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		utils.LogSuccess("WorkerPool", "All workers stopped")
		return nil
	case <-time.After(timeout):
		p.cancel()
		utils.LogWarning("WorkerPool", "Shutdown timeout, cancelling running jobs")
		<-done
		return ErrShutdownTimeout
	}
}

func (p *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		ActiveJobs:    p.active.Load(),
		QueuedJobs:    len(p.jobQueue),
		SubmittedJobs: p.submitted.Load(),
		CompletedJobs: p.completed.Load(),
		RejectedJobs:  p.rejected.Load(),
	}
}
