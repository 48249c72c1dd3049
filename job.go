package jobpool

import "context"

// Job is the interface that wraps the Execute method.
// Execute runs one unit of work. A returned error (or a panic) is reported by the worker
// executing the job and never reaches the producer.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc is an adapter to allow the use of ordinary functions as Jobs.
type JobFunc func(ctx context.Context) error

// Execute calls f(ctx).
func (f JobFunc) Execute(ctx context.Context) error { return f(ctx) }

// Middleware wraps job and adds functionality
type Middleware func(Job) Job

// wrap applies middlewares to the job. The first middleware is the outermost wrapper.
func wrap(job Job, middlewares []Middleware) Job {
	wrapped := job
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
