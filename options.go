package jobpool

import "log/slog"

// Option represents a configuration option for Pool
type Option func(*Pool)

// WithLogger sets the logger used for pool lifecycle and job failures.
// Default: discard all
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithoutAutoStop disables stopping when every submitted job completed. The pool runs
// till Close (graceful) or Stop (forced) is called, so producers may add jobs at any pace.
func WithoutAutoStop() Option {
	return func(p *Pool) {
		p.autoStop = false
	}
}

// WithCompleteFn sets the function called by each worker when it leaves the queue.
// An error returned from it is reported by Join.
func WithCompleteFn(fn CompleteFn) Option {
	return func(p *Pool) {
		p.completeFn = fn
	}
}

// WithMiddleware sets middlewares applied to each added job, same as Use.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(p *Pool) {
		p.middlewares = append(p.middlewares, middlewares...)
	}
}
