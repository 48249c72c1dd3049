// Package metrics collects per-worker counters and timings for the job pool,
// plus arbitrary user counters jobs can update through the context.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

type contextKey string

const (
	metricsContextKey contextKey = "metrics"
	widContextKey     contextKey = "worker-id"
)

// TimerType selects which duration a timer started by StartTimer accumulates into
type TimerType int

// timer types
const (
	TimerProc TimerType = iota // time spent executing jobs
	TimerWait                  // time spent waiting for the next job
)

// Value is a struct that holds the metrics for a given context
type Value struct {
	startTime atomic.Pointer[time.Time] // reset by Start
	workers   []workerStats

	userLock sync.RWMutex
	userData map[string]int
}

// workerStats is written by a single worker and read by Stats, padded to keep workers off
// each other's cache lines.
type workerStats struct {
	_         cpu.CacheLinePad
	processed atomic.Int64
	errors    atomic.Int64
	panics    atomic.Int64
	procTime  atomic.Int64
	waitTime  atomic.Int64
	_         cpu.CacheLinePad
}

// Stats is a snapshot of the aggregated worker metrics
type Stats struct {
	Processed      int
	Errors         int
	Panics         int
	ProcessingTime time.Duration
	WaitTime       time.Duration
	TotalTime      time.Duration
}

// New makes thread-safe metrics for the given number of workers
func New(workers int) *Value {
	if workers < 0 {
		workers = 0
	}
	res := &Value{workers: make([]workerStats, workers), userData: map[string]int{}}
	res.Start()
	return res
}

// Start resets the reference point of TotalTime to now. The pool calls it on each Join,
// so TotalTime covers the current run only. Counters are not reset.
func (m *Value) Start() {
	now := time.Now()
	m.startTime.Store(&now)
}

func (m *Value) sinceStart() time.Duration {
	return time.Since(*m.startTime.Load())
}

func (m *Value) slot(id int) *workerStats {
	if id < 0 || id >= len(m.workers) {
		return nil
	}
	return &m.workers[id]
}

// IncProcessed increments the processed counter of worker id
func (m *Value) IncProcessed(id int) {
	if s := m.slot(id); s != nil {
		s.processed.Add(1)
	}
}

// IncErrors increments the error counter of worker id
func (m *Value) IncErrors(id int) {
	if s := m.slot(id); s != nil {
		s.errors.Add(1)
	}
}

// IncPanics increments the panic counter of worker id. A panic is counted as an error as well.
func (m *Value) IncPanics(id int) {
	if s := m.slot(id); s != nil {
		s.panics.Add(1)
		s.errors.Add(1)
	}
}

// AddWaitTime adds to the wait time of worker id
func (m *Value) AddWaitTime(id int, d time.Duration) {
	if s := m.slot(id); s != nil {
		s.waitTime.Add(int64(d))
	}
}

// StartTimer starts a timer for worker id and returns the function stopping it.
func (m *Value) StartTimer(id int, tt TimerType) func() {
	st := time.Now()
	return func() {
		s := m.slot(id)
		if s == nil {
			return
		}
		switch tt {
		case TimerProc:
			s.procTime.Add(int64(time.Since(st)))
		case TimerWait:
			s.waitTime.Add(int64(time.Since(st)))
		}
	}
}

// GetStats returns the aggregated stats of all workers
func (m *Value) GetStats() Stats {
	res := Stats{TotalTime: m.sinceStart()}
	for i := range m.workers {
		s := &m.workers[i]
		res.Processed += int(s.processed.Load())
		res.Errors += int(s.errors.Load())
		res.Panics += int(s.panics.Load())
		res.ProcessingTime += time.Duration(s.procTime.Load())
		res.WaitTime += time.Duration(s.waitTime.Load())
	}
	return res
}

// WorkerStats returns stats of a single worker, zero value for unknown id
func (m *Value) WorkerStats(id int) Stats {
	s := m.slot(id)
	if s == nil {
		return Stats{}
	}
	return Stats{
		Processed:      int(s.processed.Load()),
		Errors:         int(s.errors.Load()),
		Panics:         int(s.panics.Load()),
		ProcessingTime: time.Duration(s.procTime.Load()),
		WaitTime:       time.Duration(s.waitTime.Load()),
		TotalTime:      m.sinceStart(),
	}
}

// String returns stats in a compact form
func (s Stats) String() string {
	res := []string{fmt.Sprintf("processed:%d", s.Processed)}
	if s.Errors > 0 {
		res = append(res, fmt.Sprintf("errors:%d", s.Errors))
	}
	if s.Panics > 0 {
		res = append(res, fmt.Sprintf("panics:%d", s.Panics))
	}
	res = append(res,
		fmt.Sprintf("proc:%v", s.ProcessingTime.Round(time.Millisecond)),
		fmt.Sprintf("wait:%v", s.WaitTime.Round(time.Millisecond)),
		fmt.Sprintf("total:%v", s.TotalTime.Round(time.Millisecond)),
	)
	return "[" + strings.Join(res, ", ") + "]"
}

// Add increments value for a given key and returns new value
func (m *Value) Add(key string, delta int) int {
	m.userLock.Lock()
	defer m.userLock.Unlock()
	m.userData[key] += delta
	return m.userData[key]
}

// Inc increments value for given key by one
func (m *Value) Inc(key string) int {
	return m.Add(key, 1)
}

// Set value for given key
func (m *Value) Set(key string, val int) {
	m.userLock.Lock()
	defer m.userLock.Unlock()
	m.userData[key] = val
}

// Get returns value for given key
func (m *Value) Get(key string) int {
	m.userLock.RLock()
	defer m.userLock.RUnlock() // nolint gocritic

	return m.userData[key]
}

// String returns sorted key:vals string representation of user metrics and adds duration
func (m *Value) String() string {
	duration := m.sinceStart()

	m.userLock.RLock()
	defer m.userLock.RUnlock()

	sortedKeys := make([]string, 0, len(m.userData))
	for k := range m.userData {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	udata := make([]string, len(sortedKeys))
	for i, k := range sortedKeys {
		udata[i] = fmt.Sprintf("%s:%d", k, m.userData[k])
	}

	um := ""
	if len(udata) > 0 {
		um = fmt.Sprintf("[%s]", strings.Join(udata, ", "))
	}
	return fmt.Sprintf("%v %s", duration, um)
}

// WorkerID returns worker ID from the context.
// Can be used inside of job code to get worker id.
func WorkerID(ctx context.Context) int {
	cid, ok := ctx.Value(widContextKey).(int)
	if !ok { // jobs executed outside the pool won't have any
		cid = 0
	}
	return cid
}

// WithWorkerID sets worker ID in the context.
func WithWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, widContextKey, id)
}

// Get metrics from context. Returns a detached instance if the context has none.
func Get(ctx context.Context) *Value {
	res, ok := ctx.Value(metricsContextKey).(*Value)
	if !ok {
		return New(0)
	}
	return res
}

// Make context with the given metrics
func Make(ctx context.Context, m *Value) context.Context {
	return context.WithValue(ctx, metricsContextKey, m)
}
