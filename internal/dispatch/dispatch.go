// Package dispatch provides the execution context that listener callbacks run on.
//
// Change signals and session deliveries arrive on arbitrary goroutines.
// Listeners are redispatched through a [Dispatcher] so that an application
// observes them on one well-known goroutine, usually the one driving its UI.
package dispatch

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
)

// Dispatcher schedules fn to run on its execution context.
type Dispatcher interface {
	Dispatch(fn func())
}

// Func adapts an ordinary function to a Dispatcher. It is useful for
// forwarding callbacks into an event loop owned by another library, such as
// a bubbletea program's Send.
type Func func(fn func())

// Dispatch implements Dispatcher.
func (f Func) Dispatch(fn func()) {
	f(fn)
}

// Inline runs fn immediately on the calling goroutine.
var Inline Dispatcher = Func(func(fn func()) { fn() })

// Queue is a serial FIFO executor. Work is accepted from any goroutine and run
// one item at a time, in submission order, by whichever goroutine is running
// the queue.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	running bool

	done chan struct{}
}

// NewQueue creates an idle queue. Call Run or Start to begin draining it.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Dispatch implements Dispatcher. Work submitted after Close is discarded.
func (q *Queue) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
}

// Run drains the queue on the calling goroutine until ctx is cancelled or
// Close is called. Work already queued when Close is called still runs.
// Only one Run may be active at a time; a second concurrent call returns
// immediately.
func (q *Queue) Run(ctx context.Context) {
	if !q.claim() {
		return
	}
	q.loop(ctx)
}

// Start runs the queue on a dedicated goroutine.
func (q *Queue) Start() {
	if q.claim() {
		go q.loop(context.Background())
	}
}

func (q *Queue) claim() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.closed {
		return false
	}
	q.running = true
	return true
}

func (q *Queue) loop(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.closed = true
		q.pending = nil
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		runSafely(fn)
	}
}

// Close stops accepting work, lets queued work finish and waits for a running
// Run to return. Close on a queue that was never run returns immediately.
//
// Close must not be called from work running on the queue, since that work
// is what Close waits for. Use Stop there.
func (q *Queue) Close() {
	if q.Stop() {
		<-q.done
	}
}

// Stop stops accepting work without waiting. Work already queued still runs
// and the running loop returns after it. Stop reports whether a loop was
// running at the time of the call.
func (q *Queue) Stop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return q.running
}

// Len returns the number of queued items not yet started.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: dispatched function panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
