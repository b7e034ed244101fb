// Package dispatch provides the single coordination context all call-audio state lives on.
package dispatch

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	zlog "github.com/rs/zerolog/log"
)

// Queue executes posted closures one at a time, in order, on a dedicated goroutine.
// Posting never blocks, including from a closure already running on the queue.
type Queue struct {
	name  string
	clock clock.Clock

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}

	// Set while a closure runs on the loop goroutine identified by loopID.
	running atomic.Bool
	loopID  atomic.Uint64
}

// NewQueue creates a queue and starts its goroutine.
// A nil clock means the wall clock.
func NewQueue(name string, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	q := &Queue{
		name:    name,
		clock:   clk,
		pending: make([]func(), 0),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Clock returns the clock used for delayed tasks.
func (q *Queue) Clock() clock.Clock {
	return q.clock
}

// Async posts fn for execution. Returns false if the queue is closed.
func (q *Queue) Async(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync posts fn and waits for it to finish.
// Must not be called from the queue itself.
func (q *Queue) Sync(fn func()) bool {
	finished := make(chan struct{})
	if !q.Async(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-q.stopped:
		return false
	}
}

// OnQueue reports whether the caller is a closure running on this queue.
func (q *Queue) OnQueue() bool {
	return q.running.Load() && goroutineID() == q.loopID.Load()
}

// After runs fn on the queue once d has elapsed, unless the task is cancelled first.
func (q *Queue) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	timer := q.clock.AfterFunc(d, func() {
		q.Async(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	t.stop = func() { timer.Stop() }
	return t
}

// Every runs fn on the queue each time d elapses until the task is cancelled.
func (q *Queue) Every(d time.Duration, fn func()) *Task {
	t := &Task{}
	ticker := q.clock.Ticker(d)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				q.Async(func() {
					if t.cancelled.Load() {
						return
					}
					fn()
				})
			case <-quit:
				return
			case <-q.done:
				ticker.Stop()
				return
			}
		}
	}()

	t.stop = func() {
		ticker.Stop()
		close(quit)
	}
	return t
}

// Close stops the queue. Pending closures are dropped.
// When called from outside the queue it waits for the running closure to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	close(q.done)
	if dropped > 0 {
		zlog.Debug().Msgf("dispatch: queue %s closed with %d pending closures dropped", q.name, dropped)
	}

	if !q.OnQueue() {
		<-q.stopped
	}
}

func (q *Queue) loop() {
	defer close(q.stopped)
	q.loopID.Store(goroutineID())

	for {
		select {
		case <-q.wake:
		case <-q.done:
			return
		}

		for {
			job, ok := q.next()
			if !ok {
				break
			}
			q.run(job)
		}
	}
}

func (q *Queue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.pending) == 0 {
		return nil, false
	}
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return job, true
}

func (q *Queue) run(job func()) {
	q.running.Store(true)
	defer q.running.Store(false)
	job()
}

// goroutineID parses the current goroutine's ID from the "goroutine N [" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
