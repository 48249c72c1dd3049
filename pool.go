package jobpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-pkgz/jobpool/metrics"
)

var (
	// ErrNilJob is returned by AddJob for a nil job
	ErrNilJob = errors.New("nil job")
	// ErrAlreadyRunning is returned by Join while workers of a previous Join are still running
	ErrAlreadyRunning = errors.New("pool already running")
)

// State of the pool lifecycle
type State int32

// pool states
const (
	StateIdle    State = iota // constructed, no workers
	StateRunning              // Join called, workers consuming
	StateDrained              // all workers joined, handle set released
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Pool runs a fixed number of workers over a shared job queue. Jobs can be added at any time,
// workers are started by Join, which returns once the queue has stopped and every worker exited.
type Pool struct {
	size        int            // number of workers (goroutines)
	autoStop    bool           // stop the queue when completed count reaches submitted count
	completeFn  CompleteFn     // called by each worker on exit
	middlewares []Middleware   // applied to each job on AddJob
	logger      *slog.Logger   // discards by default
	queue       *Queue[Job]    // shared by all workers
	metrics     *metrics.Value // shared metrics

	mu     sync.Mutex
	state  State
	eg     *errgroup.Group // worker handles, nil unless running
	active atomic.Int32    // live workers
}

// CompleteFn called (optionally) by each worker when it leaves the queue
type CompleteFn func(ctx context.Context, id int) error

// New makes a pool of size workers. No goroutines are started until Join.
// Negative size is treated as zero.
func New(size int, opts ...Option) *Pool {
	if size < 0 {
		size = 0
	}

	res := &Pool{
		size:     size,
		autoStop: true,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(res)
	}

	res.queue = NewQueue[Job](res.autoStop)
	res.metrics = metrics.New(size)
	return res
}

// Use applies middlewares to every job added after the call. Middlewares are applied
// in the same order as they are provided, the first one is the outermost wrapper.
// Not safe to call concurrently with AddJob.
func (p *Pool) Use(middlewares ...Middleware) *Pool {
	p.middlewares = append(p.middlewares, middlewares...)
	return p
}

// AddJob submits a job to the queue. Can be called from any goroutine, before or during Join.
func (p *Pool) AddJob(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	if len(p.middlewares) > 0 {
		job = wrap(job, p.middlewares)
	}
	if err := p.queue.Push(job); err != nil {
		return fmt.Errorf("can't add job: %w", err)
	}
	return nil
}

// Join starts the workers and waits till all of them are done. Workers leave when the queue
// stops, i.e. every submitted job completed, Close drained the queue or Stop was called.
// Canceled ctx stops the queue, jobs already running are finished before Join returns.
// Cancellation after the workers left on their own is not reported as an interruption.
// Pool of size 0 returns immediately.
func (p *Pool) Join(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pool interrupted: %w", err)
	}

	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	if p.size == 0 {
		p.state = StateDrained
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "pool has no workers, nothing to join")
		return nil
	}
	eg := &errgroup.Group{}
	p.eg = eg
	p.state = StateRunning
	p.mu.Unlock()

	// release worker handles on every exit path
	defer func() {
		p.mu.Lock()
		p.eg = nil
		p.state = StateDrained
		p.mu.Unlock()
	}()

	p.metrics.Start()
	p.logger.InfoContext(ctx, "pool starting", slog.Int("workers", p.size))
	wCtx := metrics.Make(ctx, p.metrics)
	for id := range p.size {
		p.active.Add(1)
		eg.Go(p.workerProc(metrics.WithWorkerID(wCtx, id), id))
	}

	var interrupted atomic.Bool
	watchDone := make(chan struct{})
	stopWatch := context.AfterFunc(ctx, func() {
		defer close(watchDone)
		if p.queue.interrupt() {
			interrupted.Store(true)
		}
	})

	err := eg.Wait()
	if !stopWatch() {
		<-watchDone // cancellation func already started, let it settle
	}

	stats := p.metrics.GetStats()
	p.logger.InfoContext(ctx, "pool drained", slog.Int("processed", stats.Processed),
		slog.Int("errors", stats.Errors), slog.Duration("total", stats.TotalTime))

	if interrupted.Load() {
		return fmt.Errorf("pool interrupted: %w", errors.Join(ctx.Err(), err))
	}
	return err
}

// workerProc returns the worker goroutine function. It pops and executes jobs till the queue
// signals stop, and reports each popped job complete regardless of its outcome.
func (p *Pool) workerProc(ctx context.Context, id int) func() error {
	return func() error {
		defer p.active.Add(-1)
		p.logger.DebugContext(ctx, "worker started", slog.Int("worker_id", id))

		lastActivity := time.Now()
		for {
			job, ok := p.queue.Pop()
			if !ok {
				break
			}
			p.metrics.AddWaitTime(id, time.Since(lastActivity))
			p.execute(ctx, id, job)
			p.queue.CompleteJob()
			lastActivity = time.Now()
		}
		p.logger.DebugContext(ctx, "worker stopped", slog.Int("worker_id", id))

		if p.completeFn != nil {
			if err := p.completeFn(ctx, id); err != nil {
				return fmt.Errorf("complete func for %d failed: %w", id, err)
			}
		}
		return nil
	}
}

// execute runs a single job, a failing or panicking job is logged and counted
func (p *Pool) execute(ctx context.Context, id int, job Job) {
	procEnd := p.metrics.StartTimer(id, metrics.TimerProc)
	defer procEnd()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.IncPanics(id)
			p.logger.ErrorContext(ctx, "job panicked", slog.Int("worker_id", id), slog.Any("panic", r))
		}
	}()

	if err := job.Execute(ctx); err != nil {
		p.metrics.IncErrors(id)
		p.logger.WarnContext(ctx, "job failed", slog.Int("worker_id", id), slog.Any("error", err))
		return
	}
	p.metrics.IncProcessed(id)
}

// Stop forces the queue to stop. Workers finish the jobs they hold and leave,
// queued jobs are not executed by this run. A later AddJob makes them available again.
func (p *Pool) Stop() {
	p.queue.Stop()
}

// Close tells the pool no more jobs will be added. Workers drain the queue and leave.
// Has to be used with WithoutAutoStop, optional otherwise.
func (p *Pool) Close() {
	p.queue.Close()
}

// State returns the current lifecycle state
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Size returns the configured number of workers
func (p *Pool) Size() int { return p.size }

// ActiveWorkers returns the number of running worker goroutines
func (p *Pool) ActiveWorkers() int { return int(p.active.Load()) }

// Pending returns the number of jobs waiting in the queue
func (p *Pool) Pending() int { return p.queue.Len() }

// Submitted returns the number of jobs added to the pool
func (p *Pool) Submitted() uint64 { return p.queue.Submitted() }

// Completed returns the number of jobs workers reported complete
func (p *Pool) Completed() uint64 { return p.queue.Completed() }

// Metrics returns combined metrics from all workers
func (p *Pool) Metrics() *metrics.Value {
	return p.metrics
}
