package jobpool

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrQueueClosed is returned by Push after Close has been called.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is a thread-safe FIFO with completion accounting. It tracks how many items were
// pushed and how many were reported complete, and switches to the stopping state once the
// two counts meet. Consumers blocked in Pop are released on stop.
//
// Counters are uint64 and assumed never to wrap.
type Queue[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	items     *queue.Queue // owned items, FIFO
	submitted uint64       // incremented on push
	completed uint64       // incremented on completion report

	stopping bool // consumers should leave once the queue is empty, cleared by push
	halted   bool // forced stop, nothing is handed out till the next push
	closed   bool // no more pushes accepted
	noAuto   bool // counter equality doesn't trigger stopping
}

// NewQueue makes an empty queue. With autoStop set to false the queue stops only on Close or Stop.
func NewQueue[T any](autoStop bool) *Queue[T] {
	q := &Queue[T]{items: queue.New(), noAuto: !autoStop}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds v to the end of the queue and wakes one waiting consumer.
// A push after a natural or forced stop clears the stopping state, so the queue hands out
// work again, including items left over from a forced stop.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items.Add(v)
	q.submitted++
	q.stopping = false
	q.halted = false
	q.cond.Signal()
	return nil
}

// Pop blocks until an item is available or the queue is stopping.
// Returns false if the queue was halted, or if it is stopping and empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Length() == 0 && !q.stopping && !q.halted {
		q.cond.Wait()
	}
	if q.halted || q.items.Length() == 0 {
		return v, false
	}
	return q.items.Remove().(T), true
}

// CompleteJob reports one popped item as done. If this balances submitted and completed
// counts the queue stops and all consumers are woken.
func (q *Queue[T]) CompleteJob() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed++
	if q.completed == q.submitted && (!q.noAuto || q.closed) {
		q.stopping = true
		q.cond.Broadcast()
	}
}

// Stop forces the queue into the stopped state regardless of outstanding counts.
// Items still in the queue are not handed out till the next Push, items already popped
// are unaffected.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.halt()
}

// interrupt forces a stop unless the queue is already stopping. Returns true if it stopped
// the queue, false if consumers were leaving anyway.
func (q *Queue[T]) interrupt() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopping {
		return false
	}
	q.halt()
	return true
}

func (q *Queue[T]) halt() {
	q.stopping = true
	q.halted = true
	q.cond.Broadcast()
}

// Close signals that no more items will be pushed. Consumers drain what is left and
// leave once the last outstanding item is completed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.completed == q.submitted {
		q.stopping = true
		q.cond.Broadcast()
	}
}

// Len returns the number of items waiting in the queue
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Submitted returns the number of pushed items
func (q *Queue[T]) Submitted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Completed returns the number of items reported complete
func (q *Queue[T]) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Stopping reports whether consumers are told to leave once the queue is empty
func (q *Queue[T]) Stopping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopping
}
