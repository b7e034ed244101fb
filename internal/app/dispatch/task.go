package dispatch

import "sync/atomic"

// Task is a handle on delayed or periodic work scheduled on a Queue.
type Task struct {
	cancelled atomic.Bool
	stop      func()
}

// Cancel stops the task. A firing already posted to the queue is dropped.
// Safe to call more than once and on a nil task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	if t.cancelled.Swap(true) {
		return
	}
	if t.stop != nil {
		t.stop()
	}
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}
