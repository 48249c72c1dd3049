// Package jobpool provides a fixed-size worker pool fed by a thread-safe job queue with
// completion tracking. Workers keep pulling jobs until every submitted job is done, then the
// queue stops itself and the pool drains without any explicit "no more jobs" call.
//
// # Basic Usage
//
//	p := jobpool.New(4)
//	for _, v := range items {
//	    v := v
//	    if err := p.AddJob(jobpool.JobFunc(func(ctx context.Context) error {
//	        return process(v)
//	    })); err != nil {
//	        return err
//	    }
//	}
//
//	// starts 4 workers and blocks till all jobs are completed
//	if err := p.Join(ctx); err != nil {
//	    return err
//	}
//
// Jobs can be added before Join (they wait in the queue) and while workers run.
// Join is a single call per run; calling it while workers are running returns ErrAlreadyRunning.
//
// # Stopping
//
// The queue counts submitted and completed jobs. As soon as a completion balances the two
// counts the queue switches to stopping and idle workers leave. A job added after that point
// clears the stopping state, but workers that already left are not restarted.
//
// For producers that add jobs slower than workers consume them, disable the counter based
// stop and close the pool explicitly:
//
//	p := jobpool.New(4, jobpool.WithoutAutoStop())
//	go func() {
//	    for v := range source {
//	        _ = p.AddJob(makeJob(v))
//	    }
//	    p.Close() // workers drain the queue and leave
//	}()
//	err := p.Join(ctx)
//
// Stop forces workers to leave right after the jobs they hold, queued jobs are not executed
// by this run. Canceling the context passed to Join does the same, unless workers already
// drained the queue. The next AddJob lifts a forced stop, so a following Join executes the
// leftover jobs together with the new ones.
//
// # Failures
//
// Job errors and panics are caught by the worker, logged with the pool logger (WithLogger)
// and counted in metrics. The failing job is still reported complete, so one bad job can't
// shrink the pool or keep Join from returning.
//
// # Middlewares
//
// The middleware package provides Retry, Timeout, Recovery and Validator wrappers.
// The first middleware is the outermost, here every attempt gets its own timeout:
//
//	p := jobpool.New(4).Use(middleware.Retry(3, 10*time.Millisecond), middleware.Timeout(time.Second))
//
// # Metrics
//
// Processed, error and panic counts, processing and wait times are collected per worker.
// Counters accumulate across runs, TotalTime covers the last Join only:
//
//	stats := p.Metrics().GetStats()
//	fmt.Printf("processed: %d, errors: %d", stats.Processed, stats.Errors)
//
// Inside a job metrics.WorkerID(ctx) returns the id of the executing worker and
// metrics.Get(ctx) the pool metrics for custom counters.
package jobpool
