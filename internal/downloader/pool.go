package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"photosync/pkg/logger"
	"photosync/pkg/storage"
)

// ErrStopped is returned by Submit once a job has failed or the pool is stopping
var ErrStopped = errors.New("worker pool stopped")

// Item is the remote content a job materializes
type Item interface {
	ID() string
	Filename() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Materializer writes one item's bytes to its final location
type Materializer interface {
	Place(ctx context.Context, name string, r io.Reader, createdAt time.Time, haveTime bool) (*storage.LocalFile, error)
}

// Job represents a single item to download
type Job struct {
	Seq       int
	Item      Item
	CreatedAt time.Time
	// HaveTime is false when CreatedAt could not be normalized.
	HaveTime bool
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	File     *storage.LocalFile
	Error    error
	Skipped  bool
	Duration time.Duration
}

// Success reports whether the item was fully materialized
func (r Result) Success() bool {
	return !r.Skipped && r.Error == nil && r.File != nil
}

// WorkerPool runs materialize jobs on a fixed number of workers. The first
// failing job stops the pool: later submissions are refused and jobs already
// queued are returned as Skipped. Every accepted job yields exactly one Result.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	store       Materializer
	logger      logger.Logger

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	firstErr atomic.Pointer[error]
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, store Materializer, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		// Unbuffered so the producer never runs ahead of the workers.
		jobQueue:    make(chan Job),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		store:       store,
		logger:      log,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit hands a job to the next free worker. It blocks until a worker takes
// the job and returns ErrStopped if the pool stops first.
func (wp *WorkerPool) Submit(job Job) error {
	if wp.stopped.Load() {
		return ErrStopped
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.stopCh:
		return ErrStopped
	case <-wp.ctx.Done():
		wp.fail(wp.ctx.Err())
		return ErrStopped
	}
}

// Results returns the channel of job outcomes. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// Stopped reports whether a job has failed
func (wp *WorkerPool) Stopped() bool {
	return wp.stopped.Load()
}

// Err returns the error that stopped the pool, if any
func (wp *WorkerPool) Err() error {
	if p := wp.firstErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Stop waits for in-flight jobs to finish and closes the result channel.
// Submit must not be called after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// fail records the first error and stops the pool
func (wp *WorkerPool) fail(err error) {
	wp.stopOnce.Do(func() {
		wp.firstErr.Store(&err)
		wp.stopped.Store(true)
		close(wp.stopCh)
	})
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result Result
		if wp.stopped.Load() {
			result = Result{Job: job, Skipped: true}
		} else {
			result = wp.processJob(job, id)
			if result.Error != nil {
				wp.fail(result.Error)
			}
		}
		wp.resultQueue <- result
	}
}

// processJob opens the item stream and materializes it
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"item_id":   job.Item.ID(),
		"seq":       job.Seq,
	})

	if err := wp.ctx.Err(); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	body, err := job.Item.Open(wp.ctx)
	if err != nil {
		result.Error = fmt.Errorf("download %s failed: %w", job.Item.Filename(), err)
		result.Duration = time.Since(start)
		logger.LogMaterialized(wp.logger, job.Item.ID(), job.Item.Filename(), 0, err)
		return result
	}
	defer body.Close()

	file, err := wp.store.Place(wp.ctx, job.Item.Filename(), body, job.CreatedAt, job.HaveTime)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("save %s failed: %w", job.Item.Filename(), err)
		logger.LogMaterialized(wp.logger, job.Item.ID(), job.Item.Filename(), 0, err)
		return result
	}

	result.File = file
	logger.LogMaterialized(wp.logger, job.Item.ID(), file.Name, file.Size, nil)
	return result
}
