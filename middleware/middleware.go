// Package middleware provides common middleware implementations for the jobpool package.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-pkgz/jobpool"
)

// permanentError marks a job failure retrying won't fix
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable, Retry returns it right away. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked by Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry returns a middleware that retries failed jobs up to maxAttempts times
// with exponential backoff between retries.
// baseDelay is used as the initial delay between retries, and each subsequent retry
// increases the delay exponentially (baseDelay * 2^attempt) with some random jitter.
// Errors marked by Permanent and errors caused by the job context being done are not retried.
func Retry(maxAttempts int, baseDelay time.Duration) jobpool.Middleware {
	if maxAttempts <= 0 {
		maxAttempts = 3 // default to 3 attempts
	}
	if baseDelay <= 0 {
		baseDelay = time.Second // default to 1 second
	}

	return func(next jobpool.Job) jobpool.Job {
		return jobpool.JobFunc(func(ctx context.Context) error {
			var lastErr error
			for attempt := range maxAttempts {
				err := next.Execute(ctx)
				if err == nil {
					return nil
				}
				if IsPermanent(err) {
					return err
				}
				if ctx.Err() != nil {
					return fmt.Errorf("attempt %d interrupted: %w", attempt+1, errors.Join(ctx.Err(), err))
				}
				lastErr = err

				// don't sleep after last attempt
				if attempt < maxAttempts-1 {
					delay := baseDelay * time.Duration(1<<uint(attempt)) //nolint:gosec // won't overflow, not that many attempts
					// add up to 20% jitter
					jitter := time.Duration(float64(delay) * 0.2 * rand.Float64()) //nolint:gosec // not for security
					delay += jitter

					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
				}
			}
			return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
		})
	}
}

// Timeout returns a middleware that limits the run time of each job.
// The job gets a context canceled after timeout, it is up to the job to honor it.
// A failure after the deadline passed is reported as a timeout, retryable by an outer Retry.
func Timeout(timeout time.Duration) jobpool.Middleware {
	if timeout <= 0 {
		timeout = time.Minute // default to 1 minute
	}

	return func(next jobpool.Job) jobpool.Job {
		return jobpool.JobFunc(func(ctx context.Context) error {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := next.Execute(tctx)
			if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("job timed out after %v: %w", timeout, err)
			}
			return err
		})
	}
}

// Recovery returns a middleware that recovers from panics and converts them to errors.
// If handler is provided, it will be called with the panic value before the error is returned.
func Recovery(handler func(any)) jobpool.Middleware {
	return func(next jobpool.Job) jobpool.Job {
		return jobpool.JobFunc(func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if handler != nil {
						handler(r)
					}

					switch rt := r.(type) {
					case error:
						err = fmt.Errorf("panic recovered: %w", rt)
					default:
						err = fmt.Errorf("panic recovered: %v", rt)
					}
				}
			}()
			return next.Execute(ctx)
		})
	}
}

// Validator returns a middleware that checks the job before running it.
// The job is skipped and a permanent validation error returned if validator fails.
// validator gets the job Validator wraps, so to see the job as it was added
// Validator has to be the last middleware in the chain.
func Validator(validator func(jobpool.Job) error) jobpool.Middleware {
	return func(next jobpool.Job) jobpool.Job {
		return jobpool.JobFunc(func(ctx context.Context) error {
			if err := validator(next); err != nil {
				return Permanent(fmt.Errorf("validation failed: %w", err))
			}
			return next.Execute(ctx)
		})
	}
}
